package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

// RabbitMQ publishes jobs to durable queues and consumes them with manual ack.
type RabbitMQ struct {
	conn   *amqp.Connection
	pubMu  sync.Mutex
	pubCh  *amqp.Channel
	logger *zap.Logger

	Prefetch    int
	Concurrency int

	mu        sync.Mutex
	consumers []consumer
	wg        sync.WaitGroup
}

type consumer struct {
	ch  *amqp.Channel
	tag string
}

func DialRabbitMQ(url string, log *zap.Logger) (*RabbitMQ, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}

	return &RabbitMQ{
		conn:        conn,
		pubCh:       ch,
		logger:      log,
		Prefetch:    1,
		Concurrency: 1,
	}, nil
}

func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

// Publish sends the job as a persistent JSON message. The attempt number
// travels in the x-retry-count header.
func (r *RabbitMQ) Publish(_ context.Context, topic string, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	// amqp channels are not safe for concurrent use
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	q, err := declare(r.pubCh, topic)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	return r.pubCh.Publish(
		"",
		q.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Headers:      amqp.Table{retryHeader: int32(job.Attempt)},
			Body:         body,
		},
	)
}

// Subscribe starts Concurrency consumers sharing one channel with the
// configured prefetch. It returns once consumption has started.
func (r *RabbitMQ) Subscribe(topic string, handler Handler) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}

	q, err := declare(ch, topic)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	prefetch := r.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	tag := topic + "-" + uuid.NewString()
	msgs, err := ch.Consume(
		q.Name,
		tag,
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	workers := r.Concurrency
	if workers < 1 {
		workers = 1
	}
	r.mu.Lock()
	r.consumers = append(r.consumers, consumer{ch: ch, tag: tag})
	r.mu.Unlock()

	ctx := context.Background()
	retry := func(job Job) error { return r.Publish(ctx, topic, job) }

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for d := range msgs {
				processDelivery(ctx, d, handler, retry, r.logger)
			}
		}()
	}

	r.logger.Info("consuming queue", zap.String("queue", q.Name), zap.Int("prefetch", prefetch), zap.Int("workers", workers))
	return nil
}

// Close cancels the consumers, waits for in-flight jobs to be acked and
// closes the connection.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	for _, c := range r.consumers {
		if err := c.ch.Cancel(c.tag, false); err != nil {
			r.logger.Warn("cancel consumer", zap.String("tag", c.tag), zap.Error(err))
		}
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.conn.Close()
}

// processDelivery acks every delivery exactly once. A failed job is
// republished with an incremented retry header until MaxRetries is reached.
func processDelivery(ctx context.Context, d amqp.Delivery, handler Handler, retry func(Job) error, log *zap.Logger) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error("invalid job payload, dropping", zap.Error(err))
		_ = d.Ack(false)
		return
	}
	job.Attempt = retryCount(d.Headers)

	jlog := log.With(zap.String("job_id", job.ID), zap.Int("campaign_id", job.CampaignID), zap.Int("attempt", job.Attempt))

	err := handler(ctx, job)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if job.Attempt >= MaxRetries {
		jlog.Error("job permanently failed", zap.Error(err))
		_ = d.Ack(false)
		return
	}

	job.Attempt++
	if pubErr := retry(job); pubErr != nil {
		// fall back to broker requeue; the header cannot be bumped this way
		jlog.Warn("republish failed, requeueing", zap.Error(errors.Join(err, pubErr)))
		_ = d.Nack(false, true)
		return
	}
	jlog.Warn("job failed, republished", zap.Error(err))
	_ = d.Ack(false)
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

var _ Queue = (*RabbitMQ)(nil)
