// Package store persists synchronizable records (collections, items, tags), the
// sync audit log and per-user sync state.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repos groups the repositories bound to one handle, either the database or an
// open transaction.
type Repos struct {
	Collections *CollectionRepository
	Items       *ItemRepository
	Tags        *TagRepository
	SyncLogs    *SyncLogRepository
	SyncStates  *SyncStateRepository
}

func newRepos(q sqlx.ExtContext) *Repos {
	return &Repos{
		Collections: &CollectionRepository{q: q},
		Items:       &ItemRepository{q: q},
		Tags:        &TagRepository{q: q},
		SyncLogs:    &SyncLogRepository{q: q},
		SyncStates:  &SyncStateRepository{q: q},
	}
}

type Store struct {
	db    *sqlx.DB
	repos *Repos
}

func New(db *sqlx.DB) *Store {
	return &Store{
		db:    db,
		repos: newRepos(db),
	}
}

// Repos returns repositories that run each statement on its own.
func (s *Store) Repos() *Repos {
	return s.repos
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic. Panics are rethrown.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	err = fn(ctx, newRepos(tx))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
