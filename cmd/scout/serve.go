// Path: cmd/scout/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"viral-scout/internal/delivery/rest"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the periodic watch loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Cancelled by a signal or by a critical component error.
		ctx, stop := context.WithCancel(cmd.Context())
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// Start the watch loop in the background
		go func() {
			if err := a.service.Start(ctx); err != nil {
				a.logger.Error("watch loop error", zap.Error(err))
				stop() // Trigger shutdown on critical service error
			}
		}()

		apiServer := rest.NewServer(a.cfg.Server.Port, a.service, a.broker, a.logger.Named("api"))
		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		var serveErr error
		select {
		case <-ctx.Done():
			a.logger.Info("Shutdown signal received. Shutting down gracefully...")
		case serveErr = <-errCh:
			a.logger.Error("API server failed", zap.Error(serveErr))
			stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("API server shutdown", zap.Error(err))
		}
		a.service.Stop()

		a.logger.Info("Server shut down successfully.")
		return serveErr
	},
}
