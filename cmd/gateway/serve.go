package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unsungfields/gateway/internal/generation"
	"github.com/unsungfields/gateway/internal/httpserver"
	"github.com/unsungfields/gateway/internal/oauth"
	"github.com/unsungfields/gateway/internal/observability"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	shutdownTelemetry, err := observability.Setup(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(a, s)

	l, err := a.newLimiter(s)
	if err != nil {
		return fmt.Errorf("create limiter: %w", err)
	}
	issuer, err := a.newIssuer()
	if err != nil {
		return err
	}

	deps := httpserver.Dependencies{
		Store:    s,
		Limiter:  l,
		Registry: a.newRegistry(s),
		Issuer:   issuer,
		Mailer:   a.newMailer(),
		Generator: generation.NewClient(generation.Config{
			BaseURL: a.cfg.GenerationBaseURL,
			APIKey:  a.cfg.GenerationAPIKey,
			Model:   a.cfg.GenerationModel,
			Timeout: a.cfg.GenerationTimeout,
		}, a.log),
	}
	if a.cfg.OAuthEnabled() {
		deps.OAuth = oauth.NewProvider(oauth.Config{
			ClientID:     a.cfg.GoogleClientID,
			ClientSecret: a.cfg.GoogleClientSecret,
			RedirectURL:  a.cfg.OAuthRedirectURL,
		})
	} else {
		a.log.Info().Msg("google oauth not configured, /login and /auth are disabled")
	}

	server := httpserver.New(a.cfg, deps, a.log)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Run(egCtx)
	})
	eg.Go(func() error {
		return a.serveMetrics(egCtx)
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	a.log.Info().Msg("gateway exited cleanly")
	return nil
}

func (a *app) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
