package main

import (
	"log"
	"strings"

	"chambersim.ai/internal/persistence/r2s3"
)

// archiveEnv configures uploads of observer frame logs to an S3-compatible
// bucket. Leaving the endpoint empty disables the mirror.
type archiveEnv struct {
	Endpoint        string `env:"ENDPOINT"`
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"auto"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Prefix          string `env:"PREFIX" envDefault:"chambers"`
	Workers         int    `env:"WORKERS" envDefault:"2"`
	QueueCapacity   int    `env:"QUEUE_CAPACITY" envDefault:"256"`
}

func buildMirror(cfg archiveEnv, logger *log.Logger) (*r2s3.Mirror, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, nil
	}
	client, err := r2s3.New(r2s3.Config{
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	logger.Printf("archive mirror enabled bucket=%s prefix=%s workers=%d", cfg.Bucket, cfg.Prefix, cfg.Workers)
	return r2s3.NewMirror(client, cfg.Prefix, cfg.Workers, cfg.QueueCapacity, logger), nil
}
