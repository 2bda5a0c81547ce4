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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/app"
	"github.com/unclebandit/notification-campaigns/internal/config"
	"github.com/unclebandit/notification-campaigns/internal/db"
	"github.com/unclebandit/notification-campaigns/internal/handler"
	"github.com/unclebandit/notification-campaigns/internal/logger"
)

// The worker consumes delivery jobs from RabbitMQ. With QUEUE_DRIVER=memory
// the API server runs deliveries itself and this process is not needed.
func main() {
	cfg := config.Load()

	logg, err := logger.New(cfg.Log, "campaign-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to DB
	conn, err := db.Open(ctx, cfg.DB, logg)
	if err != nil {
		logg.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()
	if err := db.EnsureSchema(ctx, conn); err != nil {
		logg.Fatal("schema setup failed", zap.Error(err))
	}

	worker, closeWorker, err := app.NewWorker(ctx, cfg, conn, logg)
	if err != nil {
		logg.Fatal("worker setup failed", zap.Error(err))
	}
	defer closeWorker()

	// Connect to RabbitMQ
	mq, err := app.NewRabbitMQ(cfg.Queue, logg)
	if err != nil {
		logg.Fatal("queue unavailable", zap.Error(err))
	}
	if err := worker.Start(mq, cfg.Queue.Name); err != nil {
		logg.Fatal("failed to register consumer", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handler.Healthz)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("metrics listener failed", zap.Error(err))
		}
	}()

	logg.Info("worker running, waiting for messages",
		zap.String("queue", cfg.Queue.Name),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)
	<-ctx.Done()

	logg.Info("shutting down, finishing in-flight jobs")
	if err := mq.Close(); err != nil {
		logg.Warn("close rabbitmq", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
