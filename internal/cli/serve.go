package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"grammarrelay/internal/config"
	"grammarrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(o *rootOptions) *cobra.Command {
	var (
		host string
		port string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				o.cfg.Port = port
			}
			app := server.NewApp(o.cfg)
			srv := &http.Server{
				Addr:              net.JoinHostPort(host, o.cfg.Port),
				Handler:           app.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, srv)
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen address")
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default $PORT or 5001)")
	return cmd
}

// runServer serves until ctx is done, then drains in-flight streams for up
// to shutdownTimeout.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		config.Logger.Info("starting grammarrelay", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			config.Logger.Error("server stopped unexpectedly", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	config.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.Logger.Error("graceful shutdown failed, forcing exit", "error", err)
		return err
	}
	config.Logger.Info("server gracefully stopped")
	return nil
}
