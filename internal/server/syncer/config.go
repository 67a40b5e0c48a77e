package syncer

import (
	"errors"
	"time"
)

type Config struct {
	// MaxBatchSize caps the total number of records in one client batch.
	MaxBatchSize int `mapstructure:"max_batch_size"`
	// TombstoneRetention is how long soft-deleted records are kept before the
	// housekeeping job may purge them.
	TombstoneRetention time.Duration `mapstructure:"tombstone_retention"`
	OwnerCacheSize     int           `mapstructure:"owner_cache_size"`
	OwnerCacheTTL      time.Duration `mapstructure:"owner_cache_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxBatchSize:       1000,
		TombstoneRetention: 30 * 24 * time.Hour,
		OwnerCacheSize:     4096,
		OwnerCacheTTL:      10 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return errors.New("sync max_batch_size must be positive")
	}
	if c.TombstoneRetention < 24*time.Hour {
		return errors.New("sync tombstone_retention must be at least 24h")
	}
	if c.OwnerCacheSize <= 0 {
		return errors.New("sync owner_cache_size must be positive")
	}
	if c.OwnerCacheTTL <= 0 {
		return errors.New("sync owner_cache_ttl must be positive")
	}
	return nil
}
