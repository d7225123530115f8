package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/safety-pulse/internal/app"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, WebSocket hub and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(cmd.Context(), cfg)
		},
	}
}

func expireCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Run one expiry sweep and exit",
		Long: "Run one expiry sweep and exit. Only for databases no server is using:\n" +
			"a running server sweeps expiry itself and holds the writer lock.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := app.Expire(cmd.Context(), cfg)
			return err
		},
	}
}
