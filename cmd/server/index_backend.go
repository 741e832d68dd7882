package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"chambersim.ai/internal/persistence/indexdb"
)

type runtimeIndex interface {
	RecordRun(indexdb.RunRow)
	Recent(ctx context.Context, limit int) ([]indexdb.RunRow, error)
	Dropped() uint64
	Close() error
}

func openRuntimeIndex(dataDir, backend string) (runtimeIndex, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "runs.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}
