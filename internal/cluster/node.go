package cluster

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/yndnr/replicacheck/internal/storage"
)

// Directory layout inside a replica directory.
const (
	DefaultStoreDir = "stateMachine"
	RaftDir         = "raft"
)

// NodeConfig configures one replica.
type NodeConfig struct {
	// ID is the replica identifier and its raft server ID.
	ID string

	// Dir is the replica directory, <baseDir>/<id>.
	Dir string

	// StoreDir names the state machine directory inside Dir.
	// Default: "stateMachine"
	StoreDir string

	// Transport connects the replica to its peers.
	Transport raft.Transport

	// Badger tunes the state machine store.
	Badger storage.BadgerConfig

	// Logger for logging.
	Logger *slog.Logger
}

// Node is one raft replica with its state machine.
type Node struct {
	id        string
	raft      *raft.Raft
	fsm       *StateMachine
	store     *storage.BadgerEngine
	transport raft.Transport
	logger    *slog.Logger

	logStore    *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore
}

// NewNode creates the replica's stores and starts its raft instance. The
// node is not part of a cluster until Bootstrap is called.
func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("node: id is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("node %s: dir is required", cfg.ID)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("node %s: transport is required", cfg.ID)
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = DefaultStoreDir
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("replica", cfg.ID)

	raftDir := filepath.Join(cfg.Dir, RaftDir)
	if err := os.MkdirAll(raftDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raft dir: %w", err)
	}

	store, err := storage.NewBadgerEngine(filepath.Join(cfg.Dir, cfg.StoreDir), cfg.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("open state machine store: %w", err)
	}

	n := &Node{
		id:        cfg.ID,
		fsm:       NewStateMachine(store, logger),
		store:     store,
		transport: cfg.Transport,
		logger:    logger,
	}

	if err := n.start(raftDir); err != nil {
		n.closeStores()
		return nil, err
	}

	logger.Debug("raft node created", "dir", cfg.Dir)
	return n, nil
}

func (n *Node) start(raftDir string) error {
	hclogger := newHCLogger(n.logger, "raft")

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(n.id)
	config.Logger = hclogger

	// Peers share one process, so timeouts can be short.
	config.HeartbeatTimeout = 200 * time.Millisecond
	config.ElectionTimeout = 200 * time.Millisecond
	config.CommitTimeout = 5 * time.Millisecond
	config.LeaderLeaseTimeout = 100 * time.Millisecond

	var err error
	n.logStore, err = raftboltdb.NewBoltStore(filepath.Join(raftDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("create log store: %w", err)
	}

	n.stableStore, err = raftboltdb.NewBoltStore(filepath.Join(raftDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("create stable store: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStoreWithLogger(raftDir, 2, hclogger)
	if err != nil {
		return fmt.Errorf("create snapshot store: %w", err)
	}

	n.raft, err = raft.NewRaft(config, n.fsm, n.logStore, n.stableStore, snapshots, n.transport)
	if err != nil {
		return fmt.Errorf("create raft: %w", err)
	}
	return nil
}

// ID returns the replica identifier.
func (n *Node) ID() string { return n.id }

// Address returns the replica's transport address.
func (n *Node) Address() raft.ServerAddress { return n.transport.LocalAddr() }

// Store returns the state machine store.
func (n *Node) Store() *storage.BadgerEngine { return n.store }

// Bootstrap seeds the node with the initial cluster membership. Every
// member is bootstrapped with the same configuration.
func (n *Node) Bootstrap(members []*Node) error {
	var servers []raft.Server
	for _, m := range members {
		servers = append(servers, raft.Server{
			ID:      raft.ServerID(m.id),
			Address: m.Address(),
		})
	}

	f := n.raft.BootstrapCluster(raft.Configuration{Servers: servers})
	if err := f.Error(); err != nil {
		return fmt.Errorf("bootstrap %s: %w", n.id, err)
	}
	return nil
}

// Apply replicates data and waits until it is committed and applied on
// this node, which must be the leader.
func (n *Node) Apply(data []byte, timeout time.Duration) error {
	return waitApply(n.ApplyAsync(data, timeout))
}

// ApplyAsync submits data without waiting.
func (n *Node) ApplyAsync(data []byte, timeout time.Duration) raft.ApplyFuture {
	return n.raft.Apply(data, timeout)
}

func waitApply(f raft.ApplyFuture) error {
	if err := f.Error(); err != nil {
		return fmt.Errorf("raft apply: %w", err)
	}
	if resp := f.Response(); resp != nil {
		if err, ok := resp.(error); ok {
			return err
		}
	}
	return nil
}

// Barrier blocks until every preceding entry is applied on the leader.
func (n *Node) Barrier(timeout time.Duration) error {
	if err := n.raft.Barrier(timeout).Error(); err != nil {
		return fmt.Errorf("raft barrier: %w", err)
	}
	return nil
}

// IsLeader returns true if this node is the raft leader.
func (n *Node) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

// LastIndex returns the last log index stored on this node.
func (n *Node) LastIndex() uint64 {
	return n.raft.LastIndex()
}

// AppliedIndex returns the last index applied to the state machine.
func (n *Node) AppliedIndex() uint64 {
	return n.raft.AppliedIndex()
}

// Snapshot forces a state machine snapshot.
func (n *Node) Snapshot() error {
	if err := n.raft.Snapshot().Error(); err != nil {
		return fmt.Errorf("snapshot %s: %w", n.id, err)
	}
	return nil
}

// Close shuts raft down and closes every store. The state machine store
// is flushed, so it can be reopened read-only afterwards.
func (n *Node) Close() error {
	var result *multierror.Error

	if n.raft != nil {
		if err := n.raft.Shutdown().Error(); err != nil {
			result = multierror.Append(result, fmt.Errorf("raft shutdown: %w", err))
		}
	}
	if closer, ok := n.transport.(raft.WithClose); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close transport: %w", err))
		}
	}
	if err := n.closeStores(); err != nil {
		result = multierror.Append(result, err)
	}

	n.logger.Debug("raft node shutdown complete")
	return result.ErrorOrNil()
}

func (n *Node) closeStores() error {
	var result *multierror.Error

	if n.stableStore != nil {
		if err := n.stableStore.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close stable store: %w", err))
		}
	}
	if n.logStore != nil {
		if err := n.logStore.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close log store: %w", err))
		}
	}
	if err := n.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close state machine store: %w", err))
	}

	return result.ErrorOrNil()
}
