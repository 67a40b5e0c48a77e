package db

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// Config selects and configures the backing database.
type Config struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSqlite:
		if c.Path == "" {
			return fmt.Errorf("database path is required for %s", DriverSqlite)
		}
	case DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("database dsn is required for %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
	return nil
}

// Open connects to the configured database. Schema migrations are not applied;
// see Migrate.
func Open(cfg *Config) (*sqlx.DB, error) {
	switch cfg.Driver {
	case DriverSqlite:
		opts := []SqliteOption{WithPath(cfg.Path)}
		if cfg.MaxOpenConns > 0 {
			opts = append(opts, WithMaxOpenConns(cfg.MaxOpenConns))
		}
		return NewSqliteDB(opts...)
	case DriverPostgres:
		return NewPostgresDB(cfg.DSN, cfg.MaxOpenConns)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
