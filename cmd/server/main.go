// Command server runs the natural-language SQL API.
//
// Startup order:
//  1. Load .env (best effort) and typed configuration
//  2. Configure zerolog (level, optional pretty console)
//  3. Initialize OpenTelemetry tracing (opt-in)
//  4. Open the audit store (SQLite) and the warehouse pool (Postgres)
//  5. Build the Gin engine, register routes, serve
//
// Shutdown is graceful: SIGINT/SIGTERM drains in-flight requests before the
// pool, audit store, and tracer provider are closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	_ "github.com/tbourn/go-sqlchat-backend/docs"
	"github.com/tbourn/go-sqlchat-backend/internal/config"
	"github.com/tbourn/go-sqlchat-backend/internal/db"
	httpapi "github.com/tbourn/go-sqlchat-backend/internal/http"
	"github.com/tbourn/go-sqlchat-backend/internal/llm"
	"github.com/tbourn/go-sqlchat-backend/internal/observability"
	"github.com/tbourn/go-sqlchat-backend/internal/repo"
	"github.com/tbourn/go-sqlchat-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Tracing (no-op shutdown when disabled)
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Audit store (SQLite)
	gdb, err := repo.OpenSQLite(cfg.HistoryDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.HistoryDBPath).Msg("open audit store failed")
	}
	if err := repo.AutoMigrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("audit store migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}

	// Warehouse pool (Postgres)
	pool, err := db.OpenPool(ctx, cfg.DatabaseURL, db.DefaultPoolOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("open warehouse pool failed")
	}
	defer pool.Close()

	// Model client
	completer := llm.NewAnthropicClient(
		cfg.LLM.Model,
		int64(cfg.LLM.MaxTokens),
		cfg.LLM.Timeout,
		uint(cfg.LLM.MaxRetries)+1, // retries -> total tries
	)

	// HTTP engine
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, gdb, pool, completer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("model", cfg.LLM.Model).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
