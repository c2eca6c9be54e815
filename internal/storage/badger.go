// Package storage provides Badger-based KV storage implementation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
)

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Only used by the writable engine.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites enables sync writes (fsync after each write).
	// Default: false (raft provides durability)
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		CacheSize:        16 << 20, // 16MB
		ValueLogFileSize: 64 << 20, // 64MB
		SyncWrites:       false,
	}
}

// badgerSnapshot is a read-only Badger handle.
type badgerSnapshot struct {
	db       *badger.DB
	path     string
	consumed atomic.Bool
}

func openBadger(path string, opts Options) (Snapshot, error) {
	bopts := badger.DefaultOptions(path)
	bopts.ReadOnly = true
	bopts.Logger = &badgerLogger{logger: opts.Logger}
	bopts.BlockCacheSize = opts.Badger.CacheSize

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, ErrStoreOpen.At(path, err)
	}

	return &badgerSnapshot{db: db, path: path}, nil
}

func (s *badgerSnapshot) Records(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(Record{}, ErrIteration.At(s.path, errConsumed))
			return
		}

		txn := s.db.NewTransaction(false)
		defer txn.Discard()

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(Record{}, ErrIteration.At(s.path, err))
				return
			}

			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				yield(Record{}, ErrIteration.At(s.path, err))
				return
			}

			if !yield(Record{Key: item.KeyCopy(nil), Value: value}, nil) {
				return
			}
		}
	}
}

func (s *badgerSnapshot) Path() string { return s.path }

func (s *badgerSnapshot) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// BadgerEngine is a writable Badger store holding one state machine.
type BadgerEngine struct {
	db     *badger.DB
	dir    string
	logger *slog.Logger
}

// NewBadgerEngine opens (creating if needed) a writable Badger store in dir.
func NewBadgerEngine(dir string, cfg BadgerConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheSize == 0 {
		cfg = DefaultBadgerConfig()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.BlockCacheSize = cfg.CacheSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	logger.Debug("badger engine opened", "dir", dir)

	return &BadgerEngine{db: db, dir: dir, logger: logger}, nil
}

// Dir returns the store directory.
func (e *BadgerEngine) Dir() string { return e.dir }

// Get retrieves a value by key.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte

	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set stores a key-value pair.
func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key.
func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan iterates over keys with a given prefix.
// Callback returns false to stop iteration.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if !fn(item.KeyCopy(nil), value) {
				break
			}
		}

		return nil
	})
}

// Checkpoint is a consistent read view pinned at the time it was taken.
type Checkpoint struct {
	txn *badger.Txn
}

// Checkpoint pins a read view of the current contents. The caller must
// Release it.
func (e *BadgerEngine) Checkpoint() *Checkpoint {
	return &Checkpoint{txn: e.db.NewTransaction(false)}
}

// Each calls fn for every record visible in the checkpoint, in key order.
func (c *Checkpoint) Each(fn func(key, value []byte) error) error {
	it := c.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

// Release discards the checkpoint.
func (c *Checkpoint) Release() {
	c.txn.Discard()
}

// Replace drops every key and loads the records produced by fill.
func (e *BadgerEngine) Replace(fill func(put func(key, value []byte) error) error) error {
	if err := e.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}

	wb := e.db.NewWriteBatch()
	defer wb.Cancel()

	if err := fill(func(key, value []byte) error {
		return wb.Set(key, value)
	}); err != nil {
		return err
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	return nil
}

// Close flushes memtables and closes the store.
func (e *BadgerEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	e.logger.Debug("badger engine closed", "dir", e.dir)
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Badger is chatty at info level; its info lines go to debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
