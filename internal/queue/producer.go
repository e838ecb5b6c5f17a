package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes test-generation jobs to the queue.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer.
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishTestGenJob publishes a test-generation job for a stored breakdown.
func (p *Producer) PublishTestGenJob(ctx context.Context, job *TestGenJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, TestGenQueueName, job); err != nil {
		return fmt.Errorf("publish testgen job: %w", err)
	}

	slog.Info("published testgen job",
		"job_id", job.ID,
		"breakdown_id", job.BreakdownID,
		"language", job.TargetLanguage,
	)
	return nil
}
