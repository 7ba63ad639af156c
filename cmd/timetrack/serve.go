package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"timetrack/internal/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cfg, err := setup()
			if err != nil {
				return err
			}

			// Context with signal handling
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, logger, cfg)
			if err != nil {
				logger.Error("failed to initialize app", slog.String("error", err.Error()))
				return err
			}
			defer application.Close()

			srv := application.HTTPServer(cfg.HTTP.Address, cfg.HTTP.Timeout)
			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", slog.String("addr", cfg.HTTP.Address))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case err := <-errCh:
				if err != nil {
					logger.Error("http server failed", slog.String("error", err.Error()))
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
