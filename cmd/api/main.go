package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/tendersuite/kbengine/internal/adapters/http"
	"github.com/tendersuite/kbengine/internal/bootstrap"
	"github.com/tendersuite/kbengine/internal/config"
	"github.com/tendersuite/kbengine/internal/observability/logging"
	"github.com/tendersuite/kbengine/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.RoleAPI)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Worker lexical writes arrive over the queue; apply them to the local
	// index so async-ingested passages become searchable here.
	go func() {
		if err := app.RunLexicalSync(ctx); err != nil {
			logger.Error("lexical sync stopped", "error", err)
			stop()
		}
	}()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(app.IngestUC, app.QueryUC, app.FieldsUC, app.Registry, httpadapter.Options{
		Service:         "api",
		RateLimitRPS:    cfg.APIRateLimitRPS,
		RateLimitBurst:  cfg.APIRateLimitBurst,
		MaxConcurrent:   cfg.APIMaxConcurrent,
		OverloadTimeout: time.Duration(cfg.APIOverloadTimeoutMS) * time.Millisecond,
		Metrics:         httpMetrics,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown", "error", err)
	}
}
