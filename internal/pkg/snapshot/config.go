package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
)

// Config holds the S3 settings for snapshot fetch and archive.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("S3_SNAPSHOT_PREFIX", "snapshots"), "/"),
		Enabled:         env.GetEnvBool("S3_SNAPSHOTS_ENABLED", false),
	}

	if cfg.Enabled {
		if cfg.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 snapshots are enabled")
		}
		if cfg.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 snapshots are enabled")
		}
		if cfg.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 snapshots are enabled")
		}
	}

	return cfg, nil
}

func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// ArchiveKey returns prefix/YYYY/MM/<timestamp>.json for a snapshot taken at t.
func (c *Config) ArchiveKey(t time.Time) string {
	t = t.UTC()
	key := fmt.Sprintf("%04d/%02d/%s.json", t.Year(), int(t.Month()), t.Format("20060102T150405.000000000Z"))
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + "/" + key
}
