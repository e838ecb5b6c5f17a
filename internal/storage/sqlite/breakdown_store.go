package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// BreakdownStore implements breakdown persistence backed by SQLite.
type BreakdownStore struct {
	db *DB
}

// NewBreakdownStore creates a new SQLite-backed breakdown store.
func NewBreakdownStore(db *DB) *BreakdownStore {
	return &BreakdownStore{db: db}
}

// SaveBreakdown persists a breakdown (insert or update). The structure
// and the tests are stored in separate columns so AttachTests never has
// to rewrite the breakdown JSON.
func (s *BreakdownStore) SaveBreakdown(ctx context.Context, b *domain.TaskBreakdown) error {
	data, tests, err := splitBreakdown(b)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO breakdowns (id, data, tests, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data=excluded.data, tests=excluded.tests`,
		b.ID.String(), data, tests, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert breakdown: %w", err)
	}
	return nil
}

// GetBreakdown retrieves a breakdown by ID.
func (s *BreakdownStore) GetBreakdown(ctx context.Context, id uuid.UUID) (*domain.TaskBreakdown, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, tests, created_at FROM breakdowns WHERE id = ?`, id.String())
	return scanBreakdown(row.Scan)
}

// ListBreakdowns returns breakdowns newest-first.
func (s *BreakdownStore) ListBreakdowns(ctx context.Context, limit, offset int) ([]*domain.TaskBreakdown, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, tests, created_at FROM breakdowns
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list breakdowns: %w", err)
	}
	defer rows.Close()

	var breakdowns []*domain.TaskBreakdown
	for rows.Next() {
		b, err := scanBreakdown(rows.Scan)
		if err != nil {
			return nil, err
		}
		breakdowns = append(breakdowns, b)
	}
	return breakdowns, rows.Err()
}

// AttachTests stores generated test cases on an existing breakdown.
func (s *BreakdownStore) AttachTests(ctx context.Context, id uuid.UUID, tests []domain.TestCase) error {
	data, err := json.Marshal(tests)
	if err != nil {
		return fmt.Errorf("marshal tests: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE breakdowns SET tests = ? WHERE id = ?", string(data), id.String())
	if err != nil {
		return fmt.Errorf("attach tests: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBreakdownNotFound
	}
	return nil
}

// DeleteBreakdown removes a breakdown and its cascaded hint sessions.
func (s *BreakdownStore) DeleteBreakdown(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM breakdowns WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete breakdown: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrBreakdownNotFound
	}
	return nil
}

// splitBreakdown marshals a breakdown into its data column (tests
// stripped) and its tests column (nil when there are none).
func splitBreakdown(b *domain.TaskBreakdown) (string, *string, error) {
	stripped := *b
	stripped.Tests = nil

	data, err := json.Marshal(&stripped)
	if err != nil {
		return "", nil, fmt.Errorf("marshal breakdown: %w", err)
	}

	var tests *string
	if len(b.Tests) > 0 {
		raw, err := json.Marshal(b.Tests)
		if err != nil {
			return "", nil, fmt.Errorf("marshal tests: %w", err)
		}
		s := string(raw)
		tests = &s
	}
	return string(data), tests, nil
}

func scanBreakdown(scan func(dest ...any) error) (*domain.TaskBreakdown, error) {
	var idStr, dataJSON string
	var testsJSON sql.NullString
	var b domain.TaskBreakdown

	if err := scan(&idStr, &dataJSON, &testsJSON, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBreakdownNotFound
		}
		return nil, fmt.Errorf("scan breakdown: %w", err)
	}

	createdAt := b.CreatedAt
	if err := json.Unmarshal([]byte(dataJSON), &b); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	b.CreatedAt = createdAt

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse breakdown id: %w", err)
	}
	b.ID = id

	if testsJSON.Valid {
		if err := json.Unmarshal([]byte(testsJSON.String), &b.Tests); err != nil {
			return nil, fmt.Errorf("unmarshal tests: %w", err)
		}
	}
	return &b, nil
}
