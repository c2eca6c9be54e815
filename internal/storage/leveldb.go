package storage

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// levelSnapshot is a read-only goleveldb handle.
type levelSnapshot struct {
	db       *leveldb.DB
	path     string
	consumed atomic.Bool
}

func openLevelDB(path string, _ Options) (Snapshot, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       true,
		ErrorIfMissing: true,
	})
	if err != nil {
		return nil, ErrStoreOpen.At(path, err)
	}

	return &levelSnapshot{db: db, path: path}, nil
}

func (s *levelSnapshot) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(Record{}, ErrIteration.At(s.path, errConsumed))
			return
		}

		snap, err := s.db.GetSnapshot()
		if err != nil {
			yield(Record{}, ErrIteration.At(s.path, err))
			return
		}
		defer snap.Release()

		it := snap.NewIterator(nil, nil)
		defer it.Release()

		for it.Next() {
			if err := ctx.Err(); err != nil {
				yield(Record{}, ErrIteration.At(s.path, err))
				return
			}
			if !yield(Record{Key: bytes.Clone(it.Key()), Value: bytes.Clone(it.Value())}, nil) {
				return
			}
		}

		if err := it.Error(); err != nil {
			yield(Record{}, ErrIteration.At(s.path, err))
		}
	}
}

func (s *levelSnapshot) Path() string { return s.path }

func (s *levelSnapshot) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close leveldb: %w", err)
	}
	return nil
}
