// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/smartscreen-ai/gateway/internal/admin"
	"github.com/smartscreen-ai/gateway/internal/auth"
	"github.com/smartscreen-ai/gateway/internal/config"
	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/health"
	"github.com/smartscreen-ai/gateway/internal/metrics"
	"github.com/smartscreen-ai/gateway/internal/middleware"
	"github.com/smartscreen-ai/gateway/internal/proxy"
	"github.com/smartscreen-ai/gateway/internal/server"
	"github.com/smartscreen-ai/gateway/internal/user"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	pool, err := core.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"min_conns", cfg.Database.MinConns,
		"max_conns", cfg.Database.MaxConns,
	)

	var rdb *redis.Client
	rds, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, rate limits are per instance",
			"error", err,
		)
	} else {
		rdb = rds.Client
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	}

	registry := metrics.NewRegistry()
	m := metrics.NewMetrics(registry)
	metrics.RegisterPool(registry, pool.Status)

	hasher, err := core.NewBcryptHasher(cfg.Security.BcryptCost)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token manager initialized",
		"algorithm", "HS256",
		"ttl", cfg.JWT.AccessTokenExpire.String(),
	)

	svcOpts := []auth.Option{auth.WithRecorder(m)}
	if telemetry != nil {
		svcOpts = append(svcOpts, auth.WithTracer(telemetry.Tracer))
	}

	authSvc, err := auth.NewService(
		pool,
		user.NewRepository,
		hasher,
		tokens,
		cfg.JWT,
		logger,
		svcOpts...,
	)
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(authSvc)

	gateway, err := proxy.NewGateway(cfg.Services, logger)
	if err != nil {
		return err
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	limits := middleware.NewLimitStore(rdb)

	var (
		healthHandler *health.Handler
		adminHandler  *admin.Handler
	)
	if rds != nil {
		healthHandler = health.NewHandler(pool, rds)
		adminHandler = admin.NewHandler(admin.HandlerConfig{
			Pool:   pool,
			Repos:  user.NewRepository,
			Redis:  rds,
			Logger: logger,
		})
	} else {
		healthHandler = health.NewHandler(pool, nil)
		adminHandler = admin.NewHandler(admin.HandlerConfig{
			Pool:   pool,
			Repos:  user.NewRepository,
			Logger: logger,
		})
	}

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RealIP(trustedProxies))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware)
	if cfg.RateLimit.Enabled {
		router.Use(
			middleware.NewRateLimiter(limits, middleware.RateLimitConfig{
				Limit: redis_rate.Limit{
					Rate:   cfg.RateLimit.Requests,
					Burst:  cfg.RateLimit.Burst,
					Period: cfg.RateLimit.Window,
				},
				FailOpen:   true,
				BypassFunc: isProbe,
			}).Handler,
		)
	}
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler(registry))

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin(cfg.Admin.Emails)

	authLimits := auth.RouteLimits{}
	proxyLimits := proxy.RouteLimits{}
	if cfg.RateLimit.Enabled {
		authLimits.Register = limits.Limit("register",
			middleware.PerMinute(cfg.RateLimit.Register, cfg.RateLimit.Register))
		authLimits.Login = limits.Limit("login",
			middleware.PerMinute(cfg.RateLimit.Login, cfg.RateLimit.Login))
		proxyLimits.Connect = limits.Limit("forms_connect",
			middleware.PerMinute(cfg.RateLimit.FormsConnect, cfg.RateLimit.FormsConnect))
		proxyLimits.Analysis = limits.Limit("analysis",
			middleware.PerMinute(cfg.RateLimit.Analysis, cfg.RateLimit.Analysis))
		proxyLimits.Tiered = limits.Tiered(middleware.DefaultTiers)
	}

	router.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, authLimits)
		gateway.RegisterRoutes(r, authenticator, proxyLimits)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		limits.Close()
		_ = rds.Close()     //nolint:errcheck // exiting on serve failure
		_ = pool.Shutdown() //nolint:errcheck // exiting on serve failure
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	drainDelay := cfg.Server.DrainDelay
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	limits.Close()

	if err := rds.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := pool.Shutdown(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// isProbe keeps orchestrator probes and scrapes out of the global budget.
func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz", "/metrics":
		return true
	}
	return false
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
