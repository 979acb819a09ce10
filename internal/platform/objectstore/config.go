// Package objectstore configures the S3-compatible client used by the
// object-store submission backend.
package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pawmate-labs/benchboard/internal/platform/env"
)

type Config struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	Region            string
	UseSSL            bool
	BucketSubmissions string
	BucketAggregates  string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("BENCHBOARD_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:          env.String("BENCHBOARD_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:         env.String("BENCHBOARD_MINIO_ACCESS_KEY", "benchboard"),
		SecretKey:         env.String("BENCHBOARD_MINIO_SECRET_KEY", "benchboardminio"),
		Region:            env.String("BENCHBOARD_MINIO_REGION", "us-east-1"),
		UseSSL:            useSSL,
		BucketSubmissions: env.String("BENCHBOARD_MINIO_BUCKET_SUBMISSIONS", "submissions"),
		BucketAggregates:  env.String("BENCHBOARD_MINIO_BUCKET_AGGREGATES", "aggregates"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketSubmissions) == "" {
		return errors.New("submissions bucket is required")
	}
	if strings.TrimSpace(c.BucketAggregates) == "" {
		return errors.New("aggregates bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
