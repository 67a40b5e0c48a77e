package storage

import (
	"fmt"

	"github.com/shelfsync/shelfsync/internal/utils"
)

const defaultRegion = "us-east-1"

type Config struct {
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	// BucketURL is the public base used for file URLs, e.g. a CDN in front of the bucket.
	BucketURL string `mapstructure:"bucket_url"`
}

// Enabled reports whether object storage is configured at all.
func (c *Config) Enabled() bool {
	return c.BucketName != ""
}

func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("access_key and secret_key must be set together")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	if c.BucketURL != "" && !utils.IsValidURL(c.BucketURL) {
		return fmt.Errorf("invalid bucket_url %q", c.BucketURL)
	}
	return nil
}
