package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/agepath/placement-engine/internal/domain/assessment"
)

// Store implements assessment.Store on a pgx pool. Transactions run at
// READ COMMITTED; placement writes serialize on the row lock taken by
// GetForUpdate.
type Store struct {
	conn *Connection
}

// NewStore creates a new Store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Repositories implements assessment.Store.
func (s *Store) Repositories() assessment.Repositories {
	return bind(s.conn.Pool())
}

// WithinTx implements assessment.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx assessment.Repositories) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

func bind(q Querier) assessment.Repositories {
	return assessment.Repositories{
		Levels:      &LevelRepository{q: q},
		Placements:  &PlacementRepository{q: q},
		Completions: &CompletionRepository{q: q},
		History:     &HistoryRepository{q: q},
	}
}
