package housekeeping

import (
	"fmt"
	"time"
)

const (
	DefaultInterval = time.Hour
	minInterval     = time.Minute
)

type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// LockFile, when set, keeps more than one purger on the same host from
	// running at once.
	LockFile string `mapstructure:"lock_file"`
}

func (c *Config) Validate() error {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < minInterval {
		return fmt.Errorf("interval must be at least %s", minInterval)
	}
	return nil
}
