// Package memory implements the assessment store and the directory in
// process memory. It backs development runs without PostgreSQL and the tests.
package memory

import (
	"context"
	"sync"

	"github.com/agepath/placement-engine/internal/domain/assessment"
)

// state is one consistent snapshot of all tables.
type state struct {
	levels      map[string]*assessment.Level
	placements  map[string]*assessment.Placement
	completions map[completionKey]*assessment.LessonCompletion
	history     []*assessment.HistoryEntry
}

type completionKey struct {
	placementID string
	lessonID    string
}

func newState() *state {
	return &state{
		levels:      make(map[string]*assessment.Level),
		placements:  make(map[string]*assessment.Placement),
		completions: make(map[completionKey]*assessment.LessonCompletion),
	}
}

func (s *state) clone() *state {
	c := &state{
		levels:      make(map[string]*assessment.Level, len(s.levels)),
		placements:  make(map[string]*assessment.Placement, len(s.placements)),
		completions: make(map[completionKey]*assessment.LessonCompletion, len(s.completions)),
		history:     make([]*assessment.HistoryEntry, len(s.history)),
	}
	for k, v := range s.levels {
		c.levels[k] = v.Clone()
	}
	for k, v := range s.placements {
		c.placements[k] = v.Clone()
	}
	for k, v := range s.completions {
		c.completions[k] = v.Clone()
	}
	for i, h := range s.history {
		c.history[i] = h.Clone()
	}
	return c
}

// Store is an assessment.Store guarded by one store-wide mutex. A transaction
// holds the mutex for its whole duration and works on a cloned state that
// replaces the live one only if the transaction succeeds.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories implements assessment.Store.
func (s *Store) Repositories() assessment.Repositories {
	return bind(view{store: s})
}

// WithinTx implements assessment.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx assessment.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.st.clone()
	if err := fn(ctx, bind(view{tx: working})); err != nil {
		return err
	}
	s.st = working
	return nil
}

// SeedLevels inserts levels directly, replacing any with the same id.
func (s *Store) SeedLevels(levels ...*assessment.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range levels {
		s.st.levels[l.ID] = l.Clone()
	}
}

// view runs repository operations either against a transaction's working
// state or, outside a transaction, against the live state under the mutex.
type view struct {
	store *Store
	tx    *state
}

func (v view) with(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func bind(v view) assessment.Repositories {
	return assessment.Repositories{
		Levels:      &levelRepository{v: v},
		Placements:  &placementRepository{v: v},
		Completions: &completionRepository{v: v},
		History:     &historyRepository{v: v},
	}
}
