package sqlite

import "github.com/scaffyhq/scaffy/internal/storage"

// Ensure SQLite stores implement the storage interfaces.
var (
	_ storage.BreakdownStore   = (*BreakdownStore)(nil)
	_ storage.HintSessionStore = (*HintSessionStore)(nil)
	_ storage.Store            = (*Store)(nil)
)

// Store bundles the SQLite-backed stores behind storage.Store.
type Store struct {
	*BreakdownStore
	*HintSessionStore
}

// NewStore creates the combined SQLite store.
func NewStore(db *DB) *Store {
	return &Store{
		BreakdownStore:   NewBreakdownStore(db),
		HintSessionStore: NewHintSessionStore(db),
	}
}
