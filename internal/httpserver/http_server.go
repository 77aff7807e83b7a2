// Package httpserver exposes the gateway over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/config"
	"github.com/unsungfields/gateway/internal/generation"
	"github.com/unsungfields/gateway/internal/httpserver/handlers"
	"github.com/unsungfields/gateway/internal/httpserver/middlewares"
	"github.com/unsungfields/gateway/internal/mailer"
	"github.com/unsungfields/gateway/internal/observability"
	"github.com/unsungfields/gateway/pkg/apikey"
	"github.com/unsungfields/gateway/pkg/limiter"
	"github.com/unsungfields/gateway/pkg/magiclink"
)

const shutdownTimeout = 10 * time.Second

// Dependencies are the services the routes are served by. OAuth is optional;
// without it /login and /auth are not registered.
type Dependencies struct {
	Store     handlers.Pinger
	Limiter   limiter.RateLimiter
	Registry  *apikey.Registry
	Issuer    *magiclink.Issuer
	Mailer    mailer.Mailer
	Generator generation.Generator
	OAuth     handlers.OAuthProvider
}

// HttpServer wraps the gin engine with graceful shutdown helpers.
type HttpServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

// New constructs the HTTP server with its middleware chain and routes.
func New(cfg *config.Config, deps Dependencies, log zerolog.Logger) *HttpServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middlewares.RequestID(),
		middlewares.TracingMiddleware(observability.TracerName),
		middlewares.LoggingMiddleware(log),
		middlewares.CORSMiddleware(cfg.CORSAllowedOrigins),
		middlewares.MetricsMiddleware(),
		middlewares.IdentityMiddleware(deps.Registry, cfg.DefaultUserID, cfg.TrustUserIDHeader, log),
	)

	registerRoutes(engine, cfg, deps, log)

	return &HttpServer{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

// Handler returns the routed engine.
func (s *HttpServer) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP listener and handles graceful shutdown via context cancellation.
func (s *HttpServer) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("gateway HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerRoutes(engine *gin.Engine, cfg *config.Config, deps Dependencies, log zerolog.Logger) {
	health := handlers.NewHealthHandler(deps.Store, log)
	engine.GET("/", health.Root)
	engine.GET("/healthz", health.Healthz)
	engine.GET("/readyz", health.Readyz)

	rl := handlers.NewRateLimitHandler(deps.Limiter, deps.Generator, cfg.GenerationModel, log)
	engine.GET("/rate-limit-status", rl.Status)
	engine.POST("/generate", rl.Generate)

	keys := handlers.NewAPIKeyHandler(deps.Registry, log)
	api := engine.Group("/api/keys")
	api.POST("", keys.Create)
	api.GET("", keys.List)
	api.DELETE("/:api_key", keys.Delete)

	links := handlers.NewMagicLinkHandler(deps.Issuer, deps.Mailer, log)
	engine.POST("/request-magic-link", links.Request)
	engine.GET("/verify-magic-link", links.Verify)

	if deps.OAuth != nil {
		secure := strings.HasPrefix(cfg.OAuthRedirectURL, "https://")
		oauth := handlers.NewOAuthHandler(deps.OAuth, cfg.FrontendURL, secure, log)
		engine.GET("/login", oauth.Login)
		engine.GET("/auth", oauth.Callback)
	}
}

// useJSONFieldNames makes binding errors name fields the way clients send them.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}
