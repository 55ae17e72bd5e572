package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"territory.ai/internal/persistence/r2s3"
)

// openMirror returns nil unless TSIM_R2_MIRROR is set. A nil mirror ignores
// every Enqueue, so callers never need to check.
func openMirror(dataDir string, logger *log.Logger) (*r2s3.Mirror, error) {
	if !envBool("TSIM_R2_MIRROR", false) {
		return nil, nil
	}
	cfg := r2s3.Config{
		Endpoint:        strings.TrimSpace(os.Getenv("TSIM_R2_ENDPOINT")),
		Bucket:          strings.TrimSpace(os.Getenv("TSIM_R2_BUCKET")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("TSIM_R2_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("TSIM_R2_SECRET_ACCESS_KEY")),
		Region:          strings.TrimSpace(os.Getenv("TSIM_R2_REGION")),
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("TSIM_R2_MIRROR=true but TSIM_R2_ENDPOINT/TSIM_R2_BUCKET/TSIM_R2_ACCESS_KEY_ID/TSIM_R2_SECRET_ACCESS_KEY are not fully set")
	}
	client, err := r2s3.New(cfg)
	if err != nil {
		return nil, err
	}
	return r2s3.NewMirror(client, r2s3.MirrorOptions{
		DataDir:       dataDir,
		Prefix:        strings.TrimSpace(os.Getenv("TSIM_R2_PREFIX")),
		Workers:       envInt("TSIM_R2_UPLOAD_WORKERS", 2),
		QueueCapacity: envInt("TSIM_R2_QUEUE_CAPACITY", 1024),
		Logger:        logger,
	}), nil
}
