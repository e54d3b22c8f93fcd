package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/doorman/pkg/account"
	"github.com/platinummonkey/doorman/pkg/config"
	"github.com/platinummonkey/doorman/pkg/httputil"
	"github.com/platinummonkey/doorman/pkg/middleware"
	"github.com/platinummonkey/doorman/pkg/observability"
	"github.com/platinummonkey/doorman/pkg/sso"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.WithError(err).Error("Failed to reach database")
		os.Exit(1)
	}

	if err := account.RunMigrations(pingCtx, db); err != nil {
		logger.WithError(err).Error("Failed to run database migrations")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	// Core wiring.
	accounts := account.NewPostgresStore(db)
	sessions := account.NewSessionManager(db, cfg.Site.SessionLifetime)
	if metrics != nil {
		sessions.SetMetrics(metrics)
	}
	settings := sso.NewSettingsStore(db, logger)
	guard := sso.NewLoopGuard(cfg.Site.BasePath)
	boot := sso.NewBootstrapper(accounts, logger)
	interceptor := sso.NewInterceptor(settings, guard, cfg.Site.BasePath, cfg.Site.FrontPage, logger, metrics)
	handlers := sso.NewHandlers(settings, boot, sessions, guard, sso.HeaderIdentitySource{},
		cfg.Site.BasePath, cfg.Site.FrontPage, logger, metrics)

	sessionMiddleware := middleware.NewSessionMiddleware(sessions, accounts)
	loginLimiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig())
	limiterCtx, stopLimiterCleanup := context.WithCancel(context.Background())
	loginLimiter.StartCleanup(limiterCtx)

	handlers.SetLoginRateLimiter(loginLimiter.Handler)

	root := mux.NewRouter()
	router := root
	if cfg.Site.BasePath != "" {
		router = root.PathPrefix(cfg.Site.BasePath).Subrouter()
	}
	handlers.RegisterRoutes(router)

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
	}
	if metrics != nil {
		middlewares = append(middlewares, metrics.Middleware)
	}
	middlewares = append(middlewares, sessionMiddleware.Handler, interceptor.Middleware)
	chain := httputil.Chain(middlewares...)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      chain(root),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes.
	health := observability.NewHealthChecker(db)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	janitorLog := logrus.New()
	janitor := account.NewJanitor(sessions, metrics, janitorLog)
	if err := janitor.Start(cfg.Site.JanitorSchedule); err != nil {
		logger.WithError(err).Error("Failed to start session janitor")
		os.Exit(1)
	}

	go func() {
		logger.Infof("Doorman listening on %s (base path %q)", apiServer.Addr, cfg.Site.BasePath)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()
	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(janitor.Stop)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		stopLimiterCleanup()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
