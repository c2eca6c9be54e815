// Package storage opens replica state-machine stores for verification.
//
// Every replica persists the state machine produced by applying the
// replicated log into an embedded, ordered key-value store. This package
// exposes those stores through one read-only abstraction:
//
//   - Open: validates the store directory and opens it read-only, bounded
//     by a timeout
//   - Snapshot.Records: lazy, single-use, key-ordered scan of the whole
//     key space
//   - Snapshot.Close: releases the handle
//
// Supported engines:
//
//   - badger: Badger v3 (default)
//   - bolt: bbolt, a state.db file with the keys in one bucket
//   - leveldb: goleveldb, LevelDB table layout
//
// BadgerEngine is the writable counterpart of the badger snapshot. It is
// used by the cluster package to materialize state machines and by tests
// to build fixtures.
package storage
