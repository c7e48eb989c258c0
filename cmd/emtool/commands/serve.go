package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflows over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, m, cleanup, err := newWorkflow()
			if err != nil {
				return err
			}
			defer cleanup()

			httpServer := &http.Server{
				Addr:    config.BindAddress,
				Handler: NewServer(logger.With("component", "server"), m, w),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "address", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("HTTP server failed", "error", err)
					return err
				}
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			logger.Info("Closing HTTP server")
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to gracefully shutdown server", "error", err)
				return err
			}

			logger.Info("Closing modem connection")
			if err := m.Close(); err != nil {
				logger.Error("Failed to close modem", "error", err)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("bind-address", "127.0.0.1:8080", "bind address for the HTTP server")
	return cmd
}
