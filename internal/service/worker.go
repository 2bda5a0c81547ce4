package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/delivery"
	"github.com/unclebandit/notification-campaigns/internal/lock"
	"github.com/unclebandit/notification-campaigns/internal/metrics"
	"github.com/unclebandit/notification-campaigns/internal/queue"
)

// Deliverer runs the delivery of one campaign.
type Deliverer interface {
	Deliver(ctx context.Context, campaignID int) (*delivery.Report, error)
}

// Worker processes campaign delivery jobs
type Worker struct {
	Engine Deliverer
	Locker lock.CampaignLocker
	Logger *zap.Logger
}

// Constructor
func NewWorker(engine Deliverer, locker lock.CampaignLocker, log *zap.Logger) *Worker {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{Engine: engine, Locker: locker, Logger: log}
}

// Start subscribes the worker to the delivery topic.
func (w *Worker) Start(q queue.Queue, topic string) error {
	return q.Subscribe(topic, w.Handle)
}

// Handle delivers the job's campaign. A returned error asks the queue to
// retry the job later.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	log := w.Logger.With(
		zap.String("job_id", job.ID),
		zap.Int("campaign_id", job.CampaignID),
		zap.Int("attempt", job.Attempt),
	)

	release, err := w.Locker.Acquire(ctx, job.CampaignID)
	if err != nil {
		if errors.Is(err, lock.ErrCampaignBusy) {
			log.Info("campaign is being delivered by another worker")
			metrics.DeliveryJobs.WithLabelValues("busy").Inc()
		} else {
			log.Error("failed to acquire campaign lock", zap.Error(err))
			metrics.DeliveryJobs.WithLabelValues("error").Inc()
		}
		return err
	}
	defer release()

	start := time.Now()
	report, err := w.Engine.Deliver(ctx, job.CampaignID)
	metrics.DeliveryJobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("campaign delivery aborted", zap.Error(err))
		metrics.DeliveryJobs.WithLabelValues("error").Inc()
		return err
	}

	if !report.Found {
		metrics.DeliveryJobs.WithLabelValues("not_found").Inc()
		return nil
	}
	metrics.DeliveryJobs.WithLabelValues("ok").Inc()
	log.Info("delivery job done",
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
