package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var printConfig bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP bridge (start-socket, status, logs)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if printConfig || cfg.Logging.DevMode {
				if err := cfg.Print(os.Stderr); err != nil {
					log.Warn("print config", zap.Error(err))
				}
			}

			log.Info("starting service",
				zap.String("service.name", cfg.ServiceName),
				zap.String("service.version", cfg.ServiceVersion),
				zap.Int("http.port", cfg.HTTP.Port),
			)
			if err := app.Run(cmd.Context(), cfg, log); err != nil {
				log.Error("application exited with error", zap.Error(err))
				return err
			}
			log.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&printConfig, "print-config", false, "print the effective configuration (secrets masked)")
	return cmd
}
