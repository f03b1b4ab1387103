package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open builds the Database selected by backend. Persistent backends create the
// parent directory of path when it does not exist yet.
func Open(backend, path string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB:
		abs, err := preparePath(path)
		if err != nil {
			return nil, err
		}
		db, err := NewLevelDB(abs)
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		return db, nil
	case BackendBolt:
		abs, err := preparePath(path)
		if err != nil {
			return nil, err
		}
		db, err := NewBoltDB(abs, nil)
		if err != nil {
			return nil, fmt.Errorf("open bolt: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}

func preparePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("storage: path required for persistent backend")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}
	return abs, nil
}
