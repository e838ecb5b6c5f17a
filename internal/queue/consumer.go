package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// TestGenHandler generates test cases for a job. An empty slice is a
// valid outcome: generation is fail-soft and a breakdown without tests
// stays usable.
type TestGenHandler func(ctx context.Context, job *TestGenJob) ([]domain.TestCase, error)

// Consumer consumes test-generation jobs and attaches results to the
// stored breakdown.
type Consumer struct {
	conn       *Connection
	handler    TestGenHandler
	store      storage.BreakdownStore
	workers    int
	prefetch   int
	jobTimeout time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Workers    int           // concurrent workers, default 2
	Prefetch   int           // prefetch count, default 1
	JobTimeout time.Duration // per-job deadline, default 2m
}

// NewConsumer creates a new queue consumer.
func NewConsumer(conn *Connection, handler TestGenHandler, store storage.BreakdownStore, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.JobTimeout <= 0 {
		// Three LLM attempts plus retries inside the resilient provider.
		cfg.JobTimeout = 2 * time.Minute
	}

	return &Consumer{
		conn:       conn,
		handler:    handler,
		store:      store,
		workers:    cfg.Workers,
		prefetch:   cfg.Prefetch,
		jobTimeout: cfg.JobTimeout,
	}
}

// Start begins consuming messages.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		TestGenQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.Info("starting testgen consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	slog.Info("worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker_id", id)
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}
			c.processMessage(ctx, id, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	start := time.Now()

	var job TestGenJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		slog.Error("failed to unmarshal testgen job", "worker_id", workerID, "error", err)
		// Reject without requeue for malformed messages
		_ = msg.Reject(false)
		return
	}

	slog.Info("processing testgen job",
		"worker_id", workerID, "job_id", job.ID, "breakdown_id", job.BreakdownID)

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	tests, err := c.handler(jobCtx, &job)
	duration := time.Since(start)

	switch {
	case err != nil:
		// Generation is best-effort; the breakdown works without tests.
		// Ack anyway so a poisoned job cannot loop forever.
		slog.Error("testgen job failed",
			"worker_id", workerID, "job_id", job.ID, "error", err, "duration", duration)
	case len(tests) == 0:
		slog.Warn("testgen job produced no cases",
			"worker_id", workerID, "job_id", job.ID, "duration", duration)
	default:
		if err := c.store.AttachTests(jobCtx, job.BreakdownID, tests); err != nil {
			slog.Error("failed to attach tests",
				"worker_id", workerID, "job_id", job.ID, "error", err)
		} else {
			slog.Info("testgen job completed",
				"worker_id", workerID, "job_id", job.ID,
				"tests", len(tests), "duration", duration)
		}
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message", "worker_id", workerID, "job_id", job.ID, "error", err)
	}
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}
