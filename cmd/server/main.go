// cmd/server/main.go
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

	"github.com/unclebandit/notification-campaigns/internal/app"
	"github.com/unclebandit/notification-campaigns/internal/config"
	"github.com/unclebandit/notification-campaigns/internal/controller"
	"github.com/unclebandit/notification-campaigns/internal/db"
	"github.com/unclebandit/notification-campaigns/internal/handler"
	"github.com/unclebandit/notification-campaigns/internal/logger"
	"github.com/unclebandit/notification-campaigns/internal/queue"
	"github.com/unclebandit/notification-campaigns/internal/repository"
	"github.com/unclebandit/notification-campaigns/internal/router"
	"github.com/unclebandit/notification-campaigns/internal/service"
)

func main() {
	cfg := config.Load()

	logg, err := logger.New(cfg.Log, "campaign-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	conn, err := db.Open(ctx, cfg.DB, logg)
	if err != nil {
		logg.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()
	if err := db.EnsureSchema(ctx, conn); err != nil {
		logg.Fatal("schema setup failed", zap.Error(err))
	}

	recipientRepo := &repository.RecipientRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	deliveryRepo := &repository.DeliveryRepository{DB: conn}

	// Delivery queue
	var q queue.Queue
	var drain func()
	switch cfg.Queue.Driver {
	case "rabbitmq":
		mq, err := app.NewRabbitMQ(cfg.Queue, logg)
		if err != nil {
			logg.Fatal("queue unavailable", zap.Error(err))
		}
		q = mq
		drain = func() { _ = mq.Close() }
	default:
		mem := queue.NewInMemoryQueue(logg.Named("queue"))
		worker, closeWorker, err := app.NewWorker(ctx, cfg, conn, logg)
		if err != nil {
			logg.Fatal("worker setup failed", zap.Error(err))
		}
		if err := worker.Start(mem, cfg.Queue.Name); err != nil {
			logg.Fatal("failed to subscribe worker", zap.Error(err))
		}
		q = mem
		drain = func() {
			mem.Wait()
			closeWorker()
		}
		logg.Info("in-process worker started", zap.String("topic", cfg.Queue.Name))
	}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		DeliveryRepo:  deliveryRepo,
		Dispatcher:    queue.NewDispatcher(q, cfg.Queue.Name),
		Logger:        logg.Named("campaigns"),
	}

	r := router.New(router.Handlers{
		Campaigns: &controller.CampaignController{
			CampaignService: campaignService,
			Logger:          logg,
		},
		Recipients: &controller.RecipientController{
			RecipientService: &service.RecipientService{RecipientRepo: recipientRepo},
			Logger:           logg,
		},
		Status: &handler.StatusHandler{
			Service: &service.StatusService{CampaignRepo: campaignRepo, DeliveryRepo: deliveryRepo},
			Logger:  logg,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.String("queue", cfg.Queue.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("http shutdown", zap.Error(err))
	}
	drain()
}
