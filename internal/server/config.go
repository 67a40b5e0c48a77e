package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shelfsync/shelfsync/internal/db"
	"github.com/shelfsync/shelfsync/internal/server/auth"
	"github.com/shelfsync/shelfsync/internal/server/housekeeping"
	"github.com/shelfsync/shelfsync/internal/server/storage"
	"github.com/shelfsync/shelfsync/internal/server/syncer"
	"github.com/shelfsync/shelfsync/internal/utils"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultRateLimit = "600-M"
)

type Config struct {
	HTTP         HTTPConfig          `mapstructure:"http"`
	Database     db.Config           `mapstructure:"database"`
	Auth         auth.Config         `mapstructure:"auth"`
	Sync         syncer.Config       `mapstructure:"sync"`
	Storage      storage.Config      `mapstructure:"storage"`
	Housekeeping housekeeping.Config `mapstructure:"housekeeping"`
	Log          LogConfig           `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// RateLimit uses the limiter format, e.g. "600-M". Empty disables limiting.
	RateLimit string `mapstructure:"rate_limit"`
}

type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `mapstructure:"level"`
	// File, when set, receives a rotated JSON copy of the log.
	File string `mapstructure:"file"`
}

// SlogLevel parses Level, defaulting to info.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("http addr is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("http cert_file and key_file must be set together")
	}
	if c.TLSEnabled() {
		if !utils.FileExists(c.CertFile) {
			return fmt.Errorf("http cert_file %q not found", c.CertFile)
		}
		if !utils.FileExists(c.KeyFile) {
			return fmt.Errorf("http key_file %q not found", c.KeyFile)
		}
	}
	if c.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			return fmt.Errorf("http rate_limit: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Housekeeping.Validate(); err != nil {
		return fmt.Errorf("housekeeping: %w", err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// LogValue keeps secrets out of the startup log.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.HTTP.Addr),
		slog.Bool("tls", c.HTTP.TLSEnabled()),
		slog.String("rate_limit", c.HTTP.RateLimit),
		slog.String("db_driver", c.Database.Driver),
		slog.String("db_path", c.Database.Path),
		slog.Bool("auth", c.Auth.Enabled),
		slog.String("auth_secret", utils.MaskSecret(c.Auth.AccessTokenSecret)),
		slog.Int("max_batch_size", c.Sync.MaxBatchSize),
		slog.Duration("tombstone_retention", c.Sync.TombstoneRetention),
		slog.String("bucket", c.Storage.BucketName),
		slog.Bool("housekeeping", c.Housekeeping.Enabled),
	)
}
