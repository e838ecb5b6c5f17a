// Package storage defines the persistence interfaces the API wires
// against. SQLite (internal/storage/sqlite) is the default backend;
// Postgres (internal/repository) takes over when DATABASE_URL is set.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// BreakdownStore persists task breakdowns. Tests are attached after the
// fact because test generation runs asynchronously through the queue.
type BreakdownStore interface {
	SaveBreakdown(ctx context.Context, b *domain.TaskBreakdown) error
	GetBreakdown(ctx context.Context, id uuid.UUID) (*domain.TaskBreakdown, error)
	ListBreakdowns(ctx context.Context, limit, offset int) ([]*domain.TaskBreakdown, error)
	AttachTests(ctx context.Context, id uuid.UUID, tests []domain.TestCase) error
	DeleteBreakdown(ctx context.Context, id uuid.UUID) error
}

// HintSessionStore tracks per-task help counts server-side so hint
// escalation cannot be reset from the client.
type HintSessionStore interface {
	GetOrCreateHintSession(ctx context.Context, breakdownID uuid.UUID, taskID int) (*domain.HintSession, error)
	GetHintSession(ctx context.Context, id uuid.UUID) (*domain.HintSession, error)
	RecordHint(ctx context.Context, id uuid.UUID, hint string) (*domain.HintSession, error)
}

// Store is the combined persistence surface.
type Store interface {
	BreakdownStore
	HintSessionStore
}
