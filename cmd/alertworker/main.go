// alertworker periodically sweeps alert rules over recent security
// data and opens alerts for trips. Failures are logged and retried on
// the next tick; shutdown is clean exit 0.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/alert"
	alertrepo "appliance-fieldops/authcore/internal/alert/repository"
	"appliance-fieldops/authcore/internal/config"
	"appliance-fieldops/authcore/internal/db"
	devicerepo "appliance-fieldops/authcore/internal/device/repository"
	eventrepo "appliance-fieldops/authcore/internal/event/repository"
	"appliance-fieldops/authcore/internal/otp"
	"appliance-fieldops/authcore/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("alertworker: DATABASE_URL is required")
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "authcore-alertworker", false)
	if err != nil {
		logger.Fatal("otel setup failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewWorkerMetrics(providers.MeterProvider.Meter("authcore/alertworker"))
	if err != nil {
		logger.Fatal("metrics setup failed", zap.Error(err))
	}
	tracer := providers.TracerProvider.Tracer("authcore/alertworker")

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer database.Pool.Close()

	engine := alert.NewEngine(
		alertrepo.NewPostgresRepository(database),
		eventrepo.NewPostgresRepository(database),
		devicerepo.NewPostgresRepository(database),
		otp.NewPostgresJournal(database),
		logger,
	)

	interval := cfg.PollInterval()
	logger.Info("alertworker started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep := func() {
		sweepCtx, span := tracer.Start(ctx, "alert.sweep")
		start := time.Now()
		err := engine.Run(sweepCtx)
		metrics.SweepSeconds.Record(sweepCtx, time.Since(start).Seconds())
		metrics.SweepsTotal.Add(sweepCtx, 1)
		if err != nil {
			metrics.SweepFailures.Add(sweepCtx, 1)
			logger.Error("sweep failed", zap.Error(err))
		}
		span.End()
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			logger.Info("alertworker stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
