package cluster

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/raft"

	"github.com/yndnr/replicacheck/internal/storage"
)

// Op is a state machine operation.
type Op string

const (
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// Command is one entry of the replicated log.
type Command struct {
	Op    Op     `json:"op"`
	Key   []byte `json:"key"`
	Value []byte `json:"value,omitempty"`
}

// Encode serializes the command for raft.Apply.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// StateMachine applies committed commands to a badger store.
type StateMachine struct {
	store  *storage.BadgerEngine
	logger *slog.Logger
}

// NewStateMachine creates a state machine over store.
func NewStateMachine(store *storage.BadgerEngine, logger *slog.Logger) *StateMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateMachine{store: store, logger: logger}
}

// Apply applies a committed log entry. A store error is returned as the
// apply response; an undecodable entry is fatal.
func (f *StateMachine) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		f.logger.Error("FATAL: failed to unmarshal log entry",
			"error", err,
			"log_index", log.Index,
			"log_term", log.Term)
		panic(fmt.Sprintf("StateMachine.Apply: unmarshal failed at index=%d: %v", log.Index, err))
	}

	ctx := context.Background()
	switch cmd.Op {
	case OpSet:
		if err := f.store.Set(ctx, cmd.Key, cmd.Value); err != nil {
			return fmt.Errorf("apply set at index %d: %w", log.Index, err)
		}
	case OpDelete:
		if err := f.store.Delete(ctx, cmd.Key); err != nil {
			return fmt.Errorf("apply delete at index %d: %w", log.Index, err)
		}
	default:
		f.logger.Error("FATAL: unknown command",
			"op", string(cmd.Op),
			"log_index", log.Index)
		panic(fmt.Sprintf("StateMachine.Apply: unknown op %q at index=%d", cmd.Op, log.Index))
	}

	return nil
}

// Snapshot pins the current store contents. Persist streams them while
// Apply keeps running.
func (f *StateMachine) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{checkpoint: f.store.Checkpoint()}, nil
}

// Restore replaces the store contents with a snapshot written by Persist.
func (f *StateMachine) Restore(r io.ReadCloser) error {
	defer r.Close()

	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzReader.Close()

	restored := 0
	err = f.store.Replace(func(put func(key, value []byte) error) error {
		dec := json.NewDecoder(gzReader)
		for {
			var rec snapshotRecord
			if err := dec.Decode(&rec); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("decode snapshot: %w", err)
			}
			if err := put(rec.Key, rec.Value); err != nil {
				return err
			}
			restored++
		}
	})
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	f.logger.Info("state machine restored from snapshot",
		"dir", f.store.Dir(),
		"records", restored)
	return nil
}

// snapshotRecord is one line of a snapshot stream.
type snapshotRecord struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
}

// fsmSnapshot implements raft.FSMSnapshot.
type fsmSnapshot struct {
	checkpoint *storage.Checkpoint
}

// Persist writes the pinned records to the sink as gzip-compressed JSON
// lines.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		gzWriter := gzip.NewWriter(sink)
		defer gzWriter.Close()

		enc := json.NewEncoder(gzWriter)
		if err := s.checkpoint.Each(func(key, value []byte) error {
			return enc.Encode(snapshotRecord{Key: key, Value: value})
		}); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		if err := gzWriter.Close(); err != nil {
			return fmt.Errorf("close gzip writer: %w", err)
		}
		return nil
	}()

	if err != nil {
		sink.Cancel()
		return err
	}

	return sink.Close()
}

// Release discards the pinned read view.
func (s *fsmSnapshot) Release() {
	s.checkpoint.Release()
}
