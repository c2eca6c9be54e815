package cluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/raft"

	"github.com/yndnr/replicacheck/internal/storage"
)

// applyWindow is the number of in-flight applies on the leader.
const applyWindow = 64

// pollInterval paces leader and replication checks.
const pollInterval = 20 * time.Millisecond

// Tamper is a direct write into one replica store after the cluster
// stopped. Delete removes the key instead of setting it.
type Tamper struct {
	Replica string
	Key     string
	Value   string
	Delete  bool
}

// ParseTamper parses REPLICA:KEY=VALUE (set) or REPLICA:KEY (delete).
func ParseTamper(s string) (Tamper, error) {
	replica, rest, ok := strings.Cut(s, ":")
	if !ok || replica == "" || rest == "" {
		return Tamper{}, fmt.Errorf("invalid tamper %q: want REPLICA:KEY=VALUE or REPLICA:KEY", s)
	}
	key, value, set := strings.Cut(rest, "=")
	if key == "" {
		return Tamper{}, fmt.Errorf("invalid tamper %q: empty key", s)
	}
	return Tamper{Replica: replica, Key: key, Value: value, Delete: !set}, nil
}

func (t Tamper) String() string {
	if t.Delete {
		return t.Replica + ":" + t.Key
	}
	return t.Replica + ":" + t.Key + "=" + t.Value
}

// SeedConfig configures a seeding run.
type SeedConfig struct {
	// BaseDir receives one directory per replica.
	BaseDir string

	// StoreDir names the state machine directory of each replica.
	// Default: "stateMachine"
	StoreDir string

	// Replicas lists the replica identifiers.
	Replicas []string

	// Keys is the number of generated keys.
	Keys int

	// KeyPrefix prefixes every key.
	KeyPrefix string

	// ValueSize is the length of every generated value.
	ValueSize int

	// ApplyTimeout bounds leader election, each apply and replication.
	ApplyTimeout time.Duration

	// Snapshot forces a state machine snapshot on every replica before
	// shutdown.
	Snapshot bool

	// Tamper lists writes applied to single replicas after shutdown.
	Tamper []Tamper

	// Badger tunes the state machine stores.
	Badger storage.BadgerConfig

	// Progress, when set, is called after each batch of applies with the
	// number of commands applied so far.
	Progress func(applied int)

	Logger *slog.Logger
}

// SeedResult describes a finished seeding run.
type SeedResult struct {
	Leader    string
	LastIndex uint64
	Applied   map[string]uint64
	Keys      int
	Tampered  int

	// Records is the number of keys each replica store holds after
	// tampering.
	Records map[string]int
}

// Seed runs an in-process cluster over cfg.Replicas, replicates a
// generated dataset through the leader, waits until every replica applied
// it and shuts the cluster down. Tampering happens afterwards.
func Seed(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	if len(cfg.Replicas) == 0 {
		return nil, errors.New("seed: at least one replica is required")
	}
	if cfg.ApplyTimeout <= 0 {
		return nil, errors.New("seed: apply timeout must be positive")
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = DefaultStoreDir
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	for _, t := range cfg.Tamper {
		if !slices.Contains(cfg.Replicas, t.Replica) {
			return nil, fmt.Errorf("seed: tamper %s targets unknown replica", t)
		}
	}

	nodes, err := startCluster(cfg)
	if err != nil {
		return nil, err
	}

	res, runErr := replicate(ctx, cfg, nodes)

	if err := stopCluster(nodes); err != nil {
		runErr = multierror.Append(runErr, err)
	}
	if runErr != nil {
		return nil, runErr
	}

	for _, t := range cfg.Tamper {
		if err := tamper(cfg, t); err != nil {
			return nil, err
		}
		res.Tampered++
		cfg.Logger.Warn("replica tampered", "tamper", t.String())
	}

	res.Records = make(map[string]int, len(cfg.Replicas))
	for _, id := range cfg.Replicas {
		n, err := countRecords(cfg, id)
		if err != nil {
			return nil, err
		}
		res.Records[id] = n
	}

	return res, nil
}

// startCluster creates one node per replica, wires their transports and
// bootstraps the membership.
func startCluster(cfg SeedConfig) ([]*Node, error) {
	transports := make([]*raft.InmemTransport, len(cfg.Replicas))
	for i, id := range cfg.Replicas {
		_, transports[i] = raft.NewInmemTransport(raft.ServerAddress(id))
	}
	for _, a := range transports {
		for _, b := range transports {
			if a != b {
				a.Connect(b.LocalAddr(), b)
			}
		}
	}

	nodes := make([]*Node, 0, len(cfg.Replicas))
	for i, id := range cfg.Replicas {
		n, err := NewNode(NodeConfig{
			ID:        id,
			Dir:       filepath.Join(cfg.BaseDir, id),
			StoreDir:  cfg.StoreDir,
			Transport: transports[i],
			Badger:    cfg.Badger,
			Logger:    cfg.Logger,
		})
		if err != nil {
			_ = stopCluster(nodes)
			return nil, err
		}
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		if err := n.Bootstrap(nodes); err != nil {
			_ = stopCluster(nodes)
			return nil, err
		}
	}

	cfg.Logger.Info("cluster started", "replicas", len(nodes))
	return nodes, nil
}

func stopCluster(nodes []*Node) error {
	var result *multierror.Error
	for _, n := range nodes {
		if err := n.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop %s: %w", n.ID(), err))
		}
	}
	return result.ErrorOrNil()
}

// replicate applies the generated commands on the leader and waits for
// every replica to catch up.
func replicate(ctx context.Context, cfg SeedConfig, nodes []*Node) (*SeedResult, error) {
	leader, err := waitLeader(ctx, nodes, cfg.ApplyTimeout)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("leader elected", "leader", leader.ID())

	pending := make([]raft.ApplyFuture, 0, applyWindow)
	flush := func() error {
		for _, f := range pending {
			if err := waitApply(f); err != nil {
				return err
			}
		}
		pending = pending[:0]
		return nil
	}

	for i := 0; i < cfg.Keys; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := Command{
			Op:    OpSet,
			Key:   []byte(GenerateKey(cfg.KeyPrefix, i)),
			Value: GenerateValue(i, cfg.ValueSize),
		}.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode command: %w", err)
		}

		pending = append(pending, leader.ApplyAsync(data, cfg.ApplyTimeout))
		if len(pending) == applyWindow || i == cfg.Keys-1 {
			if err := flush(); err != nil {
				return nil, err
			}
			if cfg.Progress != nil {
				cfg.Progress(i + 1)
			}
		}
	}

	if err := leader.Barrier(cfg.ApplyTimeout); err != nil {
		return nil, err
	}

	last := leader.LastIndex()
	if err := waitApplied(ctx, nodes, last, cfg.ApplyTimeout); err != nil {
		return nil, err
	}

	res := &SeedResult{
		Leader:    leader.ID(),
		LastIndex: last,
		Applied:   make(map[string]uint64, len(nodes)),
		Keys:      cfg.Keys,
	}
	for _, n := range nodes {
		if cfg.Snapshot {
			if err := n.Snapshot(); err != nil && !errors.Is(err, raft.ErrNothingNewToSnapshot) {
				return nil, err
			}
		}
		res.Applied[n.ID()] = n.AppliedIndex()
	}

	cfg.Logger.Info("dataset replicated",
		"keys", cfg.Keys,
		"last_index", last)
	return res, nil
}

func waitLeader(ctx context.Context, nodes []*Node, timeout time.Duration) (*Node, error) {
	var leader *Node
	err := poll(ctx, timeout, func() bool {
		for _, n := range nodes {
			if n.IsLeader() {
				leader = n
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("wait for leader: %w", err)
	}
	return leader, nil
}

func waitApplied(ctx context.Context, nodes []*Node, index uint64, timeout time.Duration) error {
	err := poll(ctx, timeout, func() bool {
		for _, n := range nodes {
			if n.AppliedIndex() < index {
				return false
			}
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("wait for replicas to apply index %d: %w", index, err)
	}
	return nil
}

func poll(ctx context.Context, timeout time.Duration, done func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func tamper(cfg SeedConfig, t Tamper) error {
	dir := filepath.Join(cfg.BaseDir, t.Replica, cfg.StoreDir)
	store, err := storage.NewBadgerEngine(dir, cfg.Badger, cfg.Logger)
	if err != nil {
		return fmt.Errorf("tamper %s: %w", t, err)
	}

	err = applyTamper(context.Background(), store, t)
	if cerr := store.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("tamper %s: %w", t, err)
	}
	return nil
}

// applyTamper writes t and reads the key back to confirm the store holds
// the tampered state.
func applyTamper(ctx context.Context, store *storage.BadgerEngine, t Tamper) error {
	key := []byte(t.Key)
	if t.Delete {
		if err := store.Delete(ctx, key); err != nil {
			return err
		}
		_, err := store.Get(ctx, key)
		switch {
		case err == nil:
			return errors.New("key still readable after delete")
		case !errors.Is(err, storage.ErrKeyNotFound):
			return fmt.Errorf("read back: %w", err)
		}
		return nil
	}

	if err := store.Set(ctx, key, []byte(t.Value)); err != nil {
		return err
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if string(got) != t.Value {
		return fmt.Errorf("read back %q, want %q", got, t.Value)
	}
	return nil
}

func countRecords(cfg SeedConfig, replica string) (int, error) {
	dir := filepath.Join(cfg.BaseDir, replica, cfg.StoreDir)
	store, err := storage.NewBadgerEngine(dir, cfg.Badger, cfg.Logger)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", replica, err)
	}

	n := 0
	err = store.Scan(context.Background(), nil, func(_, _ []byte) bool {
		n++
		return true
	})
	if cerr := store.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", replica, err)
	}
	return n, nil
}

// GenerateKey returns the i-th generated key.
func GenerateKey(prefix string, i int) string {
	return fmt.Sprintf("%s%06d", prefix, i)
}

// GenerateValue returns the i-th generated value, size bytes long.
func GenerateValue(i, size int) []byte {
	seed := []byte(fmt.Sprintf("v%06d:", i))
	if size <= len(seed) {
		return seed[:size]
	}
	return append(seed, bytes.Repeat([]byte{'a' + byte(i%26)}, size-len(seed))...)
}
