package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookledger/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the catalog interface",
		Long: `Starts the Bookledger web interface.

Every browser tab gets its own session: connect the configured wallet,
browse the catalog, add books and toggle their loan state. State changes
are pushed to the page over a websocket.`,
		Example: `  # Start server on the configured address (default :8888)
  bookledger serve

  # Start server on a custom address
  bookledger serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.openWallet(cmd.Context()); err != nil {
				return err
			}
			if addr == "" {
				addr = current.cfg.Server.Addr
			}

			var suggester handlers.Suggester
			if s := current.suggester(); s != nil {
				suggester = s
			}
			handler := handlers.New(current.newController, suggester)
			defer handler.Close()
			handler.StartSweeper(cmd.Context(), current.cfg.Server.SessionIdle)

			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Bookledger interface available", "addr", addr, "network", current.cfg.Network.Name)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from config)")

	return cmd
}
