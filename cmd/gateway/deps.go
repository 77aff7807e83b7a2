package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/unsungfields/gateway/internal/mailer"
	"github.com/unsungfields/gateway/internal/metrics"
	"github.com/unsungfields/gateway/pkg/apikey"
	"github.com/unsungfields/gateway/pkg/limiter"
	"github.com/unsungfields/gateway/pkg/magiclink"
	"github.com/unsungfields/gateway/pkg/store"
)

func (a *app) openStore(ctx context.Context) (store.CounterStore, error) {
	switch a.cfg.StoreBackend {
	case "memory":
		a.log.Warn().Msg("using in-memory store: state is lost on restart and not shared between replicas")
		return store.NewMemoryStore(store.WithTimeout(a.cfg.RedisTimeout)), nil
	default:
		s, err := store.Dial(ctx, a.cfg.RedisURL, store.WithTimeout(a.cfg.RedisTimeout))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return s, nil
	}
}

// newLimiter picks the atomic script limiter when the store is Redis.
func (a *app) newLimiter(s store.CounterStore) (limiter.RateLimiter, error) {
	opts := []limiter.Option{
		limiter.WithPolicy(a.cfg.LimiterPolicy()),
		limiter.WithPrefix(a.cfg.RateLimitPrefix),
		limiter.WithTimeout(a.cfg.RedisTimeout),
		limiter.WithRecorder(metrics.NewLimiterRecorder()),
	}
	if rs, ok := s.(*store.RedisStore); ok {
		return limiter.NewRedisLimiter(rs.Client(), opts...)
	}
	return limiter.NewStoreLimiter(s, opts...)
}

func (a *app) newRegistry(s store.CounterStore) *apikey.Registry {
	return apikey.NewRegistry(s,
		apikey.WithTTL(a.cfg.APIKeyTTL),
		apikey.WithTag(a.cfg.APIKeyTag),
		apikey.WithLogger(a.log),
	)
}

func (a *app) newIssuer() (*magiclink.Issuer, error) {
	if err := a.cfg.RequireMagicLink(); err != nil {
		return nil, err
	}
	base, err := url.Parse(a.cfg.MagicLinkBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse MAGIC_LINK_BASE_URL: %w", err)
	}
	return magiclink.NewIssuer(a.cfg.MagicLinkSecret,
		magiclink.WithWindow(a.cfg.MagicLinkWindow()),
		magiclink.WithBaseURL(base),
	)
}

func (a *app) newMailer() mailer.Mailer {
	if a.cfg.Mailer == "smtp" {
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			Username: a.cfg.SMTPUsername,
			Password: a.cfg.SMTPPassword,
			From:     a.cfg.SMTPFrom,
			Timeout:  a.cfg.SMTPTimeout,
		})
	}
	return mailer.NewLogMailer(a.log)
}

func closeStore(a *app, s store.CounterStore) {
	if err := s.Close(); err != nil {
		a.log.Error().Err(err).Msg("close store")
	}
}
