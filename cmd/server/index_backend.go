package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"territory.ai/internal/persistence/indexdb"
)

func openRuntimeIndex(dataDir, serverID string, disableDB bool, logger *log.Logger) (indexdb.Index, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TSIM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "server.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("TSIM_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("TSIM_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("TSIM_INDEX_BACKEND=d1 but TSIM_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("TSIM_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("TSIM_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			ServerID:      serverID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported TSIM_INDEX_BACKEND: %s", backend)
	}
}
