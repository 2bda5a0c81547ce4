// internal/app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/config"
	"github.com/unclebandit/notification-campaigns/internal/delivery"
	"github.com/unclebandit/notification-campaigns/internal/lock"
	"github.com/unclebandit/notification-campaigns/internal/queue"
	"github.com/unclebandit/notification-campaigns/internal/repository"
	"github.com/unclebandit/notification-campaigns/internal/secrets"
	"github.com/unclebandit/notification-campaigns/internal/service"
	"github.com/unclebandit/notification-campaigns/internal/transport"
)

// NewEmailSender returns the SMTP sender when SMTP_HOST is set, otherwise the
// simulated one.
func NewEmailSender(cfg config.Config, log *zap.Logger) transport.EmailSender {
	if cfg.SMTP.Enabled() {
		log.Info("email transport: smtp", zap.String("host", cfg.SMTP.Host))
		return transport.NewSMTPEmailSender(cfg.SMTP)
	}
	log.Info("email transport: simulated", zap.Duration("latency", cfg.Delivery.SimulatedLatency))
	return transport.NewSimulatedEmailSender(cfg.Delivery.SimulatedLatency, log.Named("email"))
}

// NewDirectSender builds the Telegram sender. When only a parameter name is
// configured the token is read from SSM.
func NewDirectSender(ctx context.Context, cfg config.Config, log *zap.Logger) (*transport.TelegramSender, error) {
	var store secrets.Getter
	if cfg.Telegram.BotToken == "" && cfg.Telegram.BotTokenParam != "" {
		ps, err := secrets.NewDefaultParamStore(ctx)
		if err != nil {
			return nil, err
		}
		store = ps
	}

	token, err := secrets.ResolveBotToken(ctx, cfg.Telegram.BotToken, cfg.Telegram.BotTokenParam, store)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram bot token: %w", err)
	}
	if token == "" {
		log.Warn("telegram bot token not configured, direct messages will fail")
	}

	return transport.NewTelegramSender(token, log.Named("telegram"), transport.WithTelegramBaseURL(cfg.Telegram.APIURL)), nil
}

// NewLocker connects to Redis when REDIS_ADDR is set. The returned close
// func is never nil.
func NewLocker(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (lock.CampaignLocker, func(), error) {
	if !cfg.Enabled() {
		log.Info("campaign lock disabled, REDIS_ADDR not set")
		return lock.NoopLocker{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("campaign lock enabled", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.LockTTL))
	locker := lock.NewRedisLocker(client, cfg.LockTTL)
	locker.Logger = log.Named("lock")
	return locker, func() { _ = client.Close() }, nil
}

// NewWorker wires the delivery engine and the campaign lock into a queue worker.
func NewWorker(ctx context.Context, cfg config.Config, conn *sql.DB, log *zap.Logger) (*service.Worker, func(), error) {
	direct, err := NewDirectSender(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	locker, closeLocker, err := NewLocker(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}

	engine := delivery.NewEngine(
		&repository.CampaignRepository{DB: conn},
		&repository.DeliveryRepository{DB: conn},
		NewEmailSender(cfg, log),
		direct,
		log.Named("engine"),
	)
	engine.SendTimeout = cfg.Delivery.SendTimeout

	return service.NewWorker(engine, locker, log.Named("worker")), closeLocker, nil
}

// NewRabbitMQ dials the broker with the worker sizing from cfg.
func NewRabbitMQ(cfg config.QueueConfig, log *zap.Logger) (*queue.RabbitMQ, error) {
	mq, err := queue.DialRabbitMQ(cfg.AMQPURL, log.Named("rabbitmq"))
	if err != nil {
		return nil, err
	}
	mq.Prefetch = cfg.Prefetch
	mq.Concurrency = cfg.Concurrency
	return mq, nil
}
