// Package storage provides read-only access to replica state-machine stores.
//
// This file defines the Snapshot abstraction shared by every embedded KV
// engine and the Open entry point that validates the store location and
// bounds the open with a timeout.
package storage

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Supported engine names.
const (
	EngineBadger  = "badger"
	EngineBolt    = "bolt"
	EngineLevelDB = "leveldb"
)

// Default option values.
const (
	DefaultEngine      = EngineBadger
	DefaultOpenTimeout = 10 * time.Second
	DefaultBoltBucket  = "stateMachine"

	// BoltFileName is the bolt data file expected inside a store directory.
	BoltFileName = "state.db"
)

// Record is one key-value pair as stored by a replica.
type Record struct {
	Key   []byte
	Value []byte
}

// Snapshot is a read-only view of one replica store.
//
// Implementations are opened by Open and must be closed exactly once by the
// caller, typically with a defer right after a successful Open.
type Snapshot interface {
	// Records returns a lazy sequence over the full key space in key order,
	// starting at the first key. The sequence is single-use: a second call
	// yields one ErrIteration and stops. A scan interrupted by an I/O error
	// yields ErrIteration and stops. The underlying cursor is released when
	// the sequence ends, including when the consumer breaks out early.
	Records(ctx context.Context) iter.Seq2[Record, error]

	// Path returns the store location.
	Path() string

	// Close releases the store handle.
	Close() error
}

// Options configures how a replica store is opened.
type Options struct {
	// Engine selects the embedded KV engine ("badger", "bolt", "leveldb").
	// Default: "badger"
	Engine string

	// OpenTimeout bounds a single open attempt. Zero disables the bound.
	// Default: 10s
	OpenTimeout time.Duration

	// Bucket is the bolt bucket holding the state machine keys.
	// Default: "stateMachine"
	Bucket string

	// Badger-specific tuning.
	Badger BadgerConfig

	// Logger receives engine diagnostics.
	Logger *slog.Logger
}

// DefaultOptions returns the default open options.
func DefaultOptions() Options {
	return Options{
		Engine:      DefaultEngine,
		OpenTimeout: DefaultOpenTimeout,
		Bucket:      DefaultBoltBucket,
		Badger:      DefaultBadgerConfig(),
	}
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = DefaultEngine
	}
	if o.Bucket == "" {
		o.Bucket = DefaultBoltBucket
	}
	if o.Badger.CacheSize == 0 {
		o.Badger = DefaultBadgerConfig()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// engine describes one supported KV engine.
type engine struct {
	// marker is a file every valid store directory of this engine contains.
	marker string
	open   func(path string, opts Options) (Snapshot, error)
}

var engines = map[string]engine{
	EngineBadger:  {marker: "MANIFEST", open: openBadger},
	EngineBolt:    {marker: BoltFileName, open: openBolt},
	EngineLevelDB: {marker: "CURRENT", open: openLevelDB},
}

// Engines returns the supported engine names in sorted order.
func Engines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open opens the store at path in read-only mode.
//
// It fails with ErrDirectoryNotFound when path does not exist, is not a
// directory or lacks the engine's marker file, and with ErrStoreOpen when
// the engine refuses the open or OpenTimeout elapses first. A handle whose
// open completes after the timeout is closed in the background.
func Open(ctx context.Context, path string, opts Options) (Snapshot, error) {
	opts = opts.withDefaults()

	eng, ok := engines[opts.Engine]
	if !ok {
		return nil, ErrStoreOpen.At(path, fmt.Errorf("unknown engine %q", opts.Engine))
	}

	if err := checkStoreDir(path, eng.marker); err != nil {
		return nil, err
	}

	if opts.OpenTimeout <= 0 {
		return eng.open(path, opts)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.OpenTimeout)
	defer cancel()

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)

	go func() {
		snap, err := eng.open(path, opts)
		done <- result{snap: snap, err: err}
	}()

	select {
	case r := <-done:
		return r.snap, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.snap != nil {
				if err := r.snap.Close(); err != nil {
					opts.Logger.Warn("close abandoned store handle failed", "path", path, "error", err)
				}
			}
		}()
		return nil, ErrStoreOpen.At(path, fmt.Errorf("open did not complete within %s: %w", opts.OpenTimeout, ctx.Err()))
	}
}

// checkStoreDir verifies that path is a directory holding marker.
func checkStoreDir(path, marker string) error {
	info, err := os.Stat(path)
	if err != nil {
		return ErrDirectoryNotFound.At(path, err)
	}
	if !info.IsDir() {
		return ErrDirectoryNotFound.At(path, fmt.Errorf("not a directory"))
	}

	if _, err := os.Stat(filepath.Join(path, marker)); err != nil {
		return ErrDirectoryNotFound.At(path, fmt.Errorf("not a valid store directory (missing %s)", marker))
	}

	return nil
}
