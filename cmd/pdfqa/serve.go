package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/config"
	"github.com/fyrsmithlabs/pdfqa/internal/http"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question answering pipeline over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.HTTP.Host = host
			}
			if port > 0 {
				cfg.HTTP.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := http.NewServer(a.pipeline, a.logger.Underlying().Named("http"), &http.Config{
		Host:    cfg.HTTP.Host,
		Port:    cfg.HTTP.Port,
		Version: version,
		Variant: cfg.Pipeline.Variant,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		if err != nil {
			a.logger.Error(ctx, "http server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, "http server shutdown error", zap.Error(err))
		return err
	}
	a.logger.Info(shutdownCtx, "shutdown complete")
	return nil
}
