package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// HintSessionStore implements hint-session persistence backed by SQLite.
type HintSessionStore struct {
	db *DB
}

// NewHintSessionStore creates a new SQLite-backed hint session store.
func NewHintSessionStore(db *DB) *HintSessionStore {
	return &HintSessionStore{db: db}
}

// GetOrCreateHintSession returns the session for a (breakdown, task)
// pair, creating it with a zero help count on first use.
func (s *HintSessionStore) GetOrCreateHintSession(ctx context.Context, breakdownID uuid.UUID, taskID int) (*domain.HintSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, breakdown_id, task_id, help_count, hints, created_at, updated_at
		FROM hint_sessions WHERE breakdown_id = ? AND task_id = ?`,
		breakdownID.String(), taskID)

	sess, err := scanHintSession(row.Scan)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, domain.ErrHintSessionNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	sess = &domain.HintSession{
		ID:          uuid.New(),
		BreakdownID: breakdownID,
		TaskID:      taskID,
		Hints:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hint_sessions (id, breakdown_id, task_id, help_count, hints, created_at, updated_at)
		VALUES (?, ?, ?, 0, '[]', ?, ?)`,
		sess.ID.String(), breakdownID.String(), taskID, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert hint session: %w", err)
	}
	return sess, nil
}

// GetHintSession retrieves a hint session by ID.
func (s *HintSessionStore) GetHintSession(ctx context.Context, id uuid.UUID) (*domain.HintSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, breakdown_id, task_id, help_count, hints, created_at, updated_at
		FROM hint_sessions WHERE id = ?`, id.String())
	return scanHintSession(row.Scan)
}

// RecordHint appends a delivered hint to the session and bumps the help
// count, returning the updated session.
func (s *HintSessionStore) RecordHint(ctx context.Context, id uuid.UUID, hint string) (*domain.HintSession, error) {
	sess, err := s.GetHintSession(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.Hints = append(sess.Hints, hint)
	sess.HelpCount++
	sess.UpdatedAt = time.Now().UTC()

	hints, err := json.Marshal(sess.Hints)
	if err != nil {
		return nil, fmt.Errorf("marshal hints: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE hint_sessions SET help_count = ?, hints = ?, updated_at = ?
		WHERE id = ?`,
		sess.HelpCount, string(hints), sess.UpdatedAt, id.String())
	if err != nil {
		return nil, fmt.Errorf("update hint session: %w", err)
	}
	return sess, nil
}

func scanHintSession(scan func(dest ...any) error) (*domain.HintSession, error) {
	var sess domain.HintSession
	var idStr, breakdownStr, hintsJSON string

	err := scan(&idStr, &breakdownStr, &sess.TaskID, &sess.HelpCount,
		&hintsJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHintSessionNotFound
		}
		return nil, fmt.Errorf("scan hint session: %w", err)
	}

	if sess.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	if sess.BreakdownID, err = uuid.Parse(breakdownStr); err != nil {
		return nil, fmt.Errorf("parse breakdown id: %w", err)
	}
	if err := json.Unmarshal([]byte(hintsJSON), &sess.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	return &sess, nil
}
