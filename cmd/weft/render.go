package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/weft/internal/errors"
	"github.com/vango-dev/weft/pkg/snapshot"
)

func renderCmd(flags *globalFlags) *cobra.Command {
	var (
		dataPath    string
		out         string
		store       bool
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a template against JSON data",
		Long: `Render a ${...} template once and print the result.

The template is read from a file, or from stdin when TEMPLATE is "-".
The result can be written to a file, stored in an S3 bucket, or kept
as a snapshot in the configured snapshot store.

Examples:
  weft render card.tmpl --data card.json
  weft render card.tmpl --data card.json --out card.html
  weft render card.tmpl --data card.json --out s3://renders/cards/card.html
  weft render card.tmpl --data card.json --snapshot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rt, _, err := setup(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Dispose()

			text, err := readTemplate(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			data, err := readData(dataPath)
			if err != nil {
				return err
			}
			html, err := rt.Render(text, data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			name := templateName(args[0])
			w := cmd.OutOrStdout()

			switch bucket, key, isS3 := snapshot.ParseS3URL(out); {
			case out == "":
				if !store {
					fmt.Fprint(w, html)
				}
			case isS3:
				if key == "" || strings.HasSuffix(key, "/") {
					key += snapshot.NewKey(name, ".html")
				}
				st, err := snapshotStore(cfg, bucket)
				if err != nil {
					return err
				}
				if err := st.Put(ctx, key, contentType, []byte(html)); err != nil {
					return errors.New("W302").WithDetail(out).Wrap(err)
				}
				success(w, "Stored s3://%s/%s", bucket, key)
			default:
				if err := os.WriteFile(out, []byte(html), 0644); err != nil {
					return errors.New("W302").WithDetail(out).Wrap(err)
				}
				success(w, "Wrote %s", out)
			}

			if store {
				st, err := snapshotStore(cfg, "")
				if err != nil {
					return err
				}
				key := snapshot.NewKey(name, ".html")
				if err := st.Put(ctx, key, contentType, []byte(html)); err != nil {
					return errors.New("W302").WithDetail(key).Wrap(err)
				}
				success(w, "Stored snapshot %s", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "JSON file with the view model")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result to a file or s3://bucket/key")
	cmd.Flags().BoolVar(&store, "snapshot", false, "Store the result in the configured snapshot store")
	cmd.Flags().StringVar(&contentType, "content-type", "text/html; charset=utf-8", "Content type of stored snapshots")

	return cmd
}

// templateName derives a snapshot name from the template path.
func templateName(path string) string {
	if path == "-" {
		return "stdin"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
