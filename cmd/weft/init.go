package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/weft/internal/config"
)

func initCmd(flags *globalFlags) *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write weft.yaml (or weft.json) with the default settings to the
project directory.

Examples:
  weft init
  weft init --format=json
  weft init -C ./site --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "weft.yaml"
			switch format {
			case "yaml":
			case "json":
				name = "weft.json"
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}

			if existing := config.Find(flags.dir); existing != "" && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", existing)
			}
			if err := os.MkdirAll(flags.dir, 0755); err != nil {
				return err
			}

			path := filepath.Join(flags.dir, name)
			if err := config.Default().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Created %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Configuration format: yaml or json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")

	return cmd
}
