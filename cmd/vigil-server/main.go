package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vigil/vigil/internal/config"
	"github.com/vigil/vigil/internal/domain/notification"
	"github.com/vigil/vigil/internal/engine"
	"github.com/vigil/vigil/internal/platform/audit"
	"github.com/vigil/vigil/internal/platform/clock"
	"github.com/vigil/vigil/internal/platform/db"
	"github.com/vigil/vigil/internal/platform/middleware"
	"github.com/vigil/vigil/internal/platform/telemetry"
	"github.com/vigil/vigil/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vigil-server",
		Short: "Crisis risk assessment and escalation server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the crisis engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	// Audit trail: Postgres when configured, in-memory otherwise.
	var auditRepo audit.Repository
	var pool *pgxpool.Pool
	if cfg.AuditPersistent() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		pg := audit.NewPGRepository(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare audit schema")
		}
		auditRepo = pg
		logger.Info().Msg("audit trail backed by postgres")
	} else {
		auditRepo = audit.NewMemoryRepository(cfg.AuditCap)
		logger.Info().Int("cap", cfg.AuditCap).Msg("audit trail in memory")
	}

	// Telemetry
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "vigil-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	defer tp.Shutdown(ctx)

	// Live feed hub
	hub := websocket.NewHub().WithLogger(logger)

	// Engine
	sink := &notification.LogSink{Logger: logger}
	eng := engine.New(cfg, logger, sink, auditRepo, hub, tp, clock.System{})
	eng.Start(ctx)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(tp.TracingMiddleware())
	e.Use(tp.MetricsMiddleware())

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	handler := engine.NewHandler(eng)
	handler.RegisterRoutes(apiV1)

	// Live feed
	wsHandler := websocket.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(e.Group(""))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		h := eng.Health(c.Request().Context())
		status := http.StatusOK
		if h.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, h)
	})
	e.GET("/metrics", tp.PrometheusHandler())
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Graceful shutdown: stop accepting requests first, then drain the
	// escalation monitor so no scan cycle is cut off mid-escalation.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	eng.Stop()
	logger.Info().Msg("server stopped")
	return nil
}
