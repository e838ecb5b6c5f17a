package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sqlc-dev/pqtype"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// breakdownColumns splits a breakdown into its data column (tests
// stripped) and its nullable tests column.
func breakdownColumns(b *domain.TaskBreakdown) ([]byte, pqtype.NullRawMessage, error) {
	stripped := *b
	stripped.Tests = nil

	data, err := json.Marshal(&stripped)
	if err != nil {
		return nil, pqtype.NullRawMessage{}, fmt.Errorf("marshal breakdown: %w", err)
	}

	var tests pqtype.NullRawMessage
	if len(b.Tests) > 0 {
		tests, err = marshalTests(b.Tests)
		if err != nil {
			return nil, pqtype.NullRawMessage{}, err
		}
	}
	return data, tests, nil
}

func marshalTests(tests []domain.TestCase) (pqtype.NullRawMessage, error) {
	raw, err := json.Marshal(tests)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal tests: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func scanBreakdownRow(row rowScanner) (*domain.TaskBreakdown, error) {
	var id uuid.UUID
	var data []byte
	var tests pqtype.NullRawMessage
	var b domain.TaskBreakdown

	if err := row.Scan(&id, &data, &tests, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan breakdown: %w", err)
	}

	createdAt := b.CreatedAt
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	b.ID = id
	b.CreatedAt = createdAt

	if tests.Valid {
		if err := json.Unmarshal(tests.RawMessage, &b.Tests); err != nil {
			return nil, fmt.Errorf("unmarshal tests: %w", err)
		}
	}
	return &b, nil
}

func scanHintSessionRow(row rowScanner) (*domain.HintSession, error) {
	var sess domain.HintSession
	var hints []byte

	err := row.Scan(&sess.ID, &sess.BreakdownID, &sess.TaskID, &sess.HelpCount,
		&hints, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHintSessionNotFound
		}
		return nil, fmt.Errorf("scan hint session: %w", err)
	}

	if err := json.Unmarshal(hints, &sess.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	return &sess, nil
}
