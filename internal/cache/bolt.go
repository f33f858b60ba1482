package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
)

// BucketLedger holds the ledger blob.
const BucketLedger = "ledger"

// BoltStore is a Store backed by a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the cache file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketLedger)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketLedger, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("Local cache opened", log.FieldComponent, log.ComponentCache, "path", path)
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load(ctx context.Context) (*core.Ledger, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketLedger))
		if b == nil {
			return fmt.Errorf("bucket %s not found", BucketLedger)
		}
		v := b.Get([]byte(Key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l, err := core.Decode(data)
	if err != nil {
		slog.ErrorContext(ctx, "Local cache holds an unreadable ledger", log.FieldComponent, log.ComponentCache, log.FieldError, err, "bytes", len(data))
		return nil, err
	}
	return l, nil
}

func (s *BoltStore) Save(ctx context.Context, l *core.Ledger) error {
	data, err := core.Encode(l)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketLedger))
		if b == nil {
			return fmt.Errorf("bucket %s not found", BucketLedger)
		}
		return b.Put([]byte(Key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	slog.DebugContext(ctx, "Ledger saved to local cache", log.FieldComponent, log.ComponentCache, "bytes", len(data))
	return nil
}
