package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/server"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger, flush := newLogger(cfg.LogLevel, "a11yscan")
			defer flush()
			return serve(cmd.Context(), opts, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, opts *options, cfg *app.Config, logger logging.Logger) error {
	a, err := opts.newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := server.NewServerFor(a, server.ConfigFrom(cfg, logger)).HTTPServer()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("api server listening", logging.F("addr", srv.Addr))

	var serveErr error
	select {
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}
