package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/vango-dev/weft/pkg/preview"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		dataPath string
		port     int
		host     string
	)

	cmd := &cobra.Command{
		Use:   "serve TEMPLATE",
		Short: "Start the live preview server",
		Long: `Serve a live preview of a template.

The preview page updates over WebSocket whenever the view model
changes. Post a JSON object to /state to change it:

  curl -X POST localhost:7070/state -d '{"name": "Ada"}'

Examples:
  weft serve card.tmpl --data card.json
  weft serve card.tmpl --port=8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rt, reg, err := setup(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Dispose()

			// Apply command-line overrides
			if port > 0 {
				cfg.Preview.Port = port
			}
			if host != "" {
				cfg.Preview.Host = host
			}

			text, err := readTemplate(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			data, err := readData(dataPath)
			if err != nil {
				return err
			}

			opts := preview.Options{Template: text, Data: data}
			if reg != nil {
				opts.Gatherer = reg
			}
			srv, err := preview.New(rt, opts)
			if err != nil {
				return err
			}
			defer srv.Close()

			out := cmd.OutOrStdout()
			printBanner(out)
			info(out, "preview on http://%s", cfg.PreviewAddress())
			if reg != nil {
				info(out, "metrics on http://%s/metrics", cfg.PreviewAddress())
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The server and the task loop stop together.
			p := pool.New().WithContext(ctx).WithCancelOnError()
			p.Go(func(ctx context.Context) error {
				return srv.ListenAndServe(ctx, cfg.PreviewAddress())
			})
			p.Go(func(ctx context.Context) error {
				if err := rt.Run(ctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			return p.Wait()
		},
	}

	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "JSON file with the initial view model")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")

	return cmd
}
