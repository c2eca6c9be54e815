package storage

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"sync/atomic"

	bolt "go.etcd.io/bbolt"
)

// boltSnapshot is a read-only bbolt handle over <dir>/state.db.
type boltSnapshot struct {
	db       *bolt.DB
	path     string
	bucket   []byte
	consumed atomic.Bool
}

// openBolt opens the bolt file read-only. bbolt takes a shared file lock in
// read-only mode and waits at most OpenTimeout for a writer to let go.
func openBolt(path string, opts Options) (Snapshot, error) {
	db, err := bolt.Open(filepath.Join(path, BoltFileName), 0o600, &bolt.Options{
		ReadOnly: true,
		Timeout:  opts.OpenTimeout,
	})
	if err != nil {
		return nil, ErrStoreOpen.At(path, err)
	}

	return &boltSnapshot{db: db, path: path, bucket: []byte(opts.Bucket)}, nil
}

// Records scans the configured bucket. A store without the bucket has never
// applied a write and scans as empty. Nested buckets are skipped.
func (s *boltSnapshot) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(Record{}, ErrIteration.At(s.path, errConsumed))
			return
		}

		tx, err := s.db.Begin(false)
		if err != nil {
			yield(Record{}, ErrIteration.At(s.path, err))
			return
		}
		defer tx.Rollback()

		b := tx.Bucket(s.bucket)
		if b == nil {
			return
		}

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				yield(Record{}, ErrIteration.At(s.path, err))
				return
			}
			if v == nil {
				continue
			}
			if !yield(Record{Key: bytes.Clone(k), Value: bytes.Clone(v)}, nil) {
				return
			}
		}
	}
}

func (s *boltSnapshot) Path() string { return s.path }

func (s *boltSnapshot) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close bolt: %w", err)
	}
	return nil
}
