package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "campaign_deliveries"
	MaxRetries   = 3
)

// Job asks a worker to deliver one campaign.
type Job struct {
	ID         string `json:"id"`
	CampaignID int    `json:"campaign_id"`
	Attempt    int    `json:"attempt"`
}

type Handler func(ctx context.Context, job Job) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, job Job) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue runs every published job in its own goroutine with retry.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	logger   *zap.Logger

	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *zap.Logger) *InMemoryQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryQueue{
		handlers: make(map[string][]Handler),
		logger:   log,
		Backoff:  500 * time.Millisecond,
	}
}

// Publish hands the job to all subscribers of the topic.
func (q *InMemoryQueue) Publish(_ context.Context, topic string, job Job) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler Handler, job Job) {
	defer q.wg.Done()
	log := q.logger.With(zap.String("job_id", job.ID), zap.Int("campaign_id", job.CampaignID))

	for {
		err := handler(context.Background(), job)
		if err == nil {
			log.Debug("job processed", zap.Int("attempt", job.Attempt))
			return // ACK
		}

		job.Attempt++
		if job.Attempt > MaxRetries {
			log.Error("job permanently failed", zap.Int("attempts", job.Attempt), zap.Error(err))
			return // no requeue
		}
		log.Warn("job failed, retrying", zap.Int("attempt", job.Attempt), zap.Int("max_retries", MaxRetries), zap.Error(err))

		time.Sleep(time.Duration(job.Attempt) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished, including retries.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// Dispatcher turns campaign ids into delivery jobs.
type Dispatcher struct {
	Queue Queue
	Topic string
}

func NewDispatcher(q Queue, topic string) *Dispatcher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Dispatcher{Queue: q, Topic: topic}
}

// Enqueue publishes a fresh job for the campaign. It does not wait for delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, campaignID int) error {
	job := Job{ID: uuid.NewString(), CampaignID: campaignID}
	if err := d.Queue.Publish(ctx, d.Topic, job); err != nil {
		return fmt.Errorf("enqueue campaign %d: %w", campaignID, err)
	}
	return nil
}

var (
	_ Queue = (*InMemoryQueue)(nil)
)
