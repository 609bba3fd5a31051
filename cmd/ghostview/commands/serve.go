package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/spherical/ghostview/internal/api"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve page count, distill and convert over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sc := a.cfg.Server
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			var history api.History
			if a.store != nil {
				history = a.store.History()
			}
			router := api.NewRouter(a.logger, a.runner, history, api.Config{
				RequestTimeout: sc.WriteTimeout,
				MaxUploadBytes: sc.MaxUploadBytes,
				TempDir:        a.cfg.Paths.TempDir,
			})

			addr := fmt.Sprintf("%s:%d", sc.Host, sc.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  sc.ReadTimeout,
				WriteTimeout: sc.WriteTimeout,
				IdleTimeout:  sc.IdleTimeout,
			}

			serverErrors := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", addr).Msg("HTTP server listening")
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			case <-ctx.Done():
				a.logger.Info().Msg("Shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.GracefulShutdown)
			defer cancel()
			a.runner.Cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error().Err(err).Msg("Graceful shutdown failed")
				if err := srv.Close(); err != nil {
					a.logger.Error().Err(err).Msg("Forced shutdown failed")
				}
			}
			a.logger.Info().Msg("Server stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config or SERVER_PORT)")
	return cmd
}
