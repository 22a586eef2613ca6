package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/deciphering-cb/internal/application"
	appanalysis "github.com/bryanwahyu/deciphering-cb/internal/application/analysis"
	"github.com/bryanwahyu/deciphering-cb/internal/config"
	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
	"github.com/bryanwahyu/deciphering-cb/internal/infra/httpserver"
	"github.com/bryanwahyu/deciphering-cb/internal/infra/inference"
	"github.com/bryanwahyu/deciphering-cb/internal/infra/logger"
	"github.com/bryanwahyu/deciphering-cb/internal/middleware"
)

func main() {
	if _, err := config.LoadEnvFile(); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	client, err := inference.New(inference.Options{
		Contract:          domain.Contract(cfg.Inference.Contract),
		Endpoint:          cfg.Inference.Endpoint,
		BaseURL:           cfg.Inference.BaseURL,
		Timeout:           cfg.Inference.Timeout,
		MaxResponseBytes:  cfg.Inference.MaxResponseBytes,
		LegacyASCIIFilter: cfg.Inference.LegacyASCIIFilter,
		Logger:            zl.Named("inference"),
	})
	if err != nil {
		zl.Fatal("inference client init error", zap.Error(err))
	}

	probe, err := inference.NewProbe(cfg.InferenceURL(), 2*time.Second)
	if err != nil {
		zl.Fatal("inference probe init error", zap.Error(err))
	}

	svc := appanalysis.NewService(client, application.SystemClock{}, zl.Named("analysis"), cfg.Inference.MaxInFlight)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	defer limiter.Close()

	handler := httpserver.NewRouter(httpserver.Deps{
		Service:        svc,
		Metrics:        middleware.NewMetrics(),
		Limiter:        limiter,
		Checkers:       map[string]middleware.HealthChecker{"inference": probe},
		Logger:         zl.Named("http"),
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		SecureCookies:  cfg.Server.SecureCookies,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("contract", cfg.Inference.Contract),
			zap.String("inference_url", cfg.InferenceURL()),
			zap.Duration("inference_timeout", cfg.Inference.Timeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown error", zap.Error(err))
	}
}
