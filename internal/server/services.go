package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shelfsync/shelfsync/internal/server/auth"
	"github.com/shelfsync/shelfsync/internal/server/housekeeping"
	"github.com/shelfsync/shelfsync/internal/server/storage"
	"github.com/shelfsync/shelfsync/internal/server/store"
	"github.com/shelfsync/shelfsync/internal/server/syncer"
)

type Services struct {
	Store   *store.Store
	Auth    *auth.AuthService
	Sync    *syncer.Service
	Storage *storage.Service
	Purger  *housekeeping.Purger
}

func NewServices(ctx context.Context, config *Config, db *sqlx.DB) (*Services, error) {
	st := store.New(db)

	storageSvc, err := storage.NewService(ctx, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage service: %w", err)
	}

	return &Services{
		Store:   st,
		Auth:    auth.NewAuthService(&config.Auth),
		Sync:    syncer.NewService(st, &config.Sync),
		Storage: storageSvc,
		Purger:  housekeeping.NewPurger(st, config.Sync.TombstoneRetention, &config.Housekeeping),
	}, nil
}

// Start runs the background services until ctx is done.
func (s *Services) Start(ctx context.Context, config *Config) error {
	if !config.Housekeeping.Enabled {
		return nil
	}
	return s.Purger.Start(ctx)
}

func (s *Services) Shutdown() error {
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
