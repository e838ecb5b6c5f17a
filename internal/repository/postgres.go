// Package repository holds the PostgreSQL persistence layer, used when
// DATABASE_URL points at a Postgres instance instead of the default
// on-disk SQLite store.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// Ensure the Postgres repository implements the storage interfaces.
var _ storage.Store = (*PostgresStore)(nil)

// PostgresStore implements breakdown and hint-session persistence on
// PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS breakdowns (
			id         UUID PRIMARY KEY,
			data       JSONB NOT NULL,
			tests      JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS hint_sessions (
			id           UUID PRIMARY KEY,
			breakdown_id UUID NOT NULL REFERENCES breakdowns(id) ON DELETE CASCADE,
			task_id      INTEGER NOT NULL,
			help_count   INTEGER NOT NULL DEFAULT 0,
			hints        JSONB NOT NULL DEFAULT '[]',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL,
			UNIQUE (breakdown_id, task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_hint_sessions_breakdown
			ON hint_sessions(breakdown_id)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveBreakdown persists a breakdown (insert or update).
func (s *PostgresStore) SaveBreakdown(ctx context.Context, b *domain.TaskBreakdown) error {
	data, tests, err := breakdownColumns(b)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO breakdowns (id, data, tests, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data, tests = EXCLUDED.tests`,
		b.ID, data, tests, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert breakdown: %w", err)
	}
	return nil
}

// GetBreakdown retrieves a breakdown by ID.
func (s *PostgresStore) GetBreakdown(ctx context.Context, id uuid.UUID) (*domain.TaskBreakdown, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, data, tests, created_at FROM breakdowns WHERE id = $1`, id)
	b, err := scanBreakdownRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBreakdownNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListBreakdowns returns breakdowns newest-first.
func (s *PostgresStore) ListBreakdowns(ctx context.Context, limit, offset int) ([]*domain.TaskBreakdown, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, data, tests, created_at FROM breakdowns
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list breakdowns: %w", err)
	}
	defer rows.Close()

	var breakdowns []*domain.TaskBreakdown
	for rows.Next() {
		b, err := scanBreakdownRow(rows)
		if err != nil {
			return nil, err
		}
		breakdowns = append(breakdowns, b)
	}
	return breakdowns, rows.Err()
}

// AttachTests stores generated test cases on an existing breakdown.
func (s *PostgresStore) AttachTests(ctx context.Context, id uuid.UUID, tests []domain.TestCase) error {
	raw, err := marshalTests(tests)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE breakdowns SET tests = $1 WHERE id = $2", raw, id)
	if err != nil {
		return fmt.Errorf("attach tests: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBreakdownNotFound
	}
	return nil
}

// DeleteBreakdown removes a breakdown and its cascaded hint sessions.
func (s *PostgresStore) DeleteBreakdown(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM breakdowns WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete breakdown: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBreakdownNotFound
	}
	return nil
}

// GetOrCreateHintSession returns the session for a (breakdown, task)
// pair, creating it on first use. The insert races safely: on conflict
// the existing row wins and is re-read.
func (s *PostgresStore) GetOrCreateHintSession(ctx context.Context, breakdownID uuid.UUID, taskID int) (*domain.HintSession, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hint_sessions (id, breakdown_id, task_id, help_count, hints, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '[]', $4, $4)
		ON CONFLICT (breakdown_id, task_id) DO NOTHING`,
		uuid.New(), breakdownID, taskID, now)
	if err != nil {
		return nil, fmt.Errorf("insert hint session: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, breakdown_id, task_id, help_count, hints, created_at, updated_at
		FROM hint_sessions WHERE breakdown_id = $1 AND task_id = $2`,
		breakdownID, taskID)
	return scanHintSessionRow(row)
}

// GetHintSession retrieves a hint session by ID.
func (s *PostgresStore) GetHintSession(ctx context.Context, id uuid.UUID) (*domain.HintSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, breakdown_id, task_id, help_count, hints, created_at, updated_at
		FROM hint_sessions WHERE id = $1`, id)
	return scanHintSessionRow(row)
}

// RecordHint appends a delivered hint and bumps the help count.
func (s *PostgresStore) RecordHint(ctx context.Context, id uuid.UUID, hint string) (*domain.HintSession, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE hint_sessions
		SET help_count = help_count + 1,
			hints = hints || to_jsonb($2::text),
			updated_at = $3
		WHERE id = $1
		RETURNING id, breakdown_id, task_id, help_count, hints, created_at, updated_at`,
		id, hint, time.Now().UTC())
	return scanHintSessionRow(row)
}
