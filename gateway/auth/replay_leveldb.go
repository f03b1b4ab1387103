package auth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	seenKeyPrefix     = "seen:"
	observedKeyPrefix = "observed:"
)

var errPersistenceClosed = errors.New("auth: replay persistence not configured")

// LevelDBReplayStore persists processed request digests in LevelDB, indexed by
// observation time so pruning is a prefix scan.
type LevelDBReplayStore struct {
	db *leveldb.DB
}

// OpenLevelDBReplayStore opens (or creates) a LevelDB database at path.
func OpenLevelDBReplayStore(path string) (*LevelDBReplayStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("auth: replay store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve replay store path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open replay store: %w", err)
	}
	return &LevelDBReplayStore{db: db}, nil
}

func (s *LevelDBReplayStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSeen records the digest unless it is already present. The boolean
// reports whether it existed.
func (s *LevelDBReplayStore) EnsureSeen(ctx context.Context, record SeenRecord) (bool, error) {
	if s == nil || s.db == nil {
		return false, errPersistenceClosed
	}
	key := strings.TrimSpace(record.Key)
	if key == "" {
		return false, fmt.Errorf("auth: empty replay key")
	}
	observed := record.ObservedAt.UTC()
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	seenKey := []byte(seenKeyPrefix + key)
	existing, err := s.db.Get(seenKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("load digest: %w", err)
	default:
		if len(existing) == 8 {
			return true, nil
		}
	}
	nanos := observed.UnixNano()
	batch := new(leveldb.Batch)
	batch.Put(seenKey, encodeUnixNano(nanos))
	batch.Put(observedKey(nanos, key), nil)
	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("record digest: %w", err)
	}
	return false, nil
}

// RecentSeen returns digests observed at or after cutoff.
func (s *LevelDBReplayStore) RecentSeen(ctx context.Context, cutoff time.Time) ([]SeenRecord, error) {
	if s == nil || s.db == nil {
		return nil, errPersistenceClosed
	}
	iter := s.db.NewIterator(util.BytesPrefix([]byte(observedKeyPrefix)), nil)
	defer iter.Release()

	records := make([]SeenRecord, 0)
	for ok := iter.Seek(observedKey(cutoff.UTC().UnixNano(), "")); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, nanos, ok := parseObservedKey(iter.Key())
		if !ok {
			continue
		}
		records = append(records, SeenRecord{Key: key, ObservedAt: time.Unix(0, nanos).UTC()})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate digests: %w", err)
	}
	return records, nil
}

// PruneSeen deletes digests observed before cutoff.
func (s *LevelDBReplayStore) PruneSeen(ctx context.Context, cutoff time.Time) error {
	if s == nil || s.db == nil {
		return errPersistenceClosed
	}
	limit := observedKey(cutoff.UTC().UnixNano(), "")
	iter := s.db.NewIterator(util.BytesPrefix([]byte(observedKeyPrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if bytes.Compare(iter.Key(), limit) >= 0 {
			break
		}
		key, _, ok := parseObservedKey(iter.Key())
		if !ok {
			continue
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
		batch.Delete([]byte(seenKeyPrefix + key))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterate digests: %w", err)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("prune digests: %w", err)
	}
	return nil
}

func observedKey(nanos int64, key string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", observedKeyPrefix, nanos, key))
}

func parseObservedKey(raw []byte) (string, int64, bool) {
	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[2], nanos, true
}

func encodeUnixNano(nanos int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(nanos))
	return buf
}
