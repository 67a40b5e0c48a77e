package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const postgresDriverName = "pgx"

// NewPostgresDB connects to PostgreSQL through the pgx stdlib driver.
func NewPostgresDB(dsn string, maxOpenConns int) (*sqlx.DB, error) {
	slog.Info("db", "driver", "jackc/pgx", "dsn", redactDSN(dsn))
	db, err := sqlx.Connect(postgresDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// redactDSN hides everything after the scheme so credentials never reach the logs.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "***"
	}
	return "***"
}
