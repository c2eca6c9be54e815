package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration for replicacheck.
type Config struct {
	// Replicas lists the replica identifiers (port, host name or label) in
	// the order they are reported.
	Replicas []string `koanf:"replicas"`

	// BaseDir holds one directory per replica.
	BaseDir string `koanf:"base_dir"`

	// StoreDir is the state machine directory inside each replica directory.
	StoreDir string `koanf:"store_dir"`

	Store  StoreSection  `koanf:"store"`
	Verify VerifySection `koanf:"verify"`
	Output OutputSection `koanf:"output"`
	Log    LogSection    `koanf:"log"`
	Seed   SeedSection   `koanf:"seed"`
}

// StoreSection configures how replica stores are opened.
type StoreSection struct {
	// Engine is the embedded KV engine: badger, bolt or leveldb.
	Engine string `koanf:"engine"`

	// OpenTimeout bounds each store open. Zero waits forever.
	OpenTimeout time.Duration `koanf:"open_timeout"`

	// Bucket is the bolt bucket holding the state machine.
	Bucket string `koanf:"bucket"`

	// CacheSize is the badger block cache size in bytes.
	CacheSize int64 `koanf:"cache_size"`
}

// VerifySection configures the verification run.
type VerifySection struct {
	// Baseline is the replica every other replica is compared with.
	// Empty selects the first replica that was collected successfully.
	Baseline string `koanf:"baseline"`

	// Concurrency caps parallel collections. Zero means one per replica.
	Concurrency int `koanf:"concurrency"`

	// ScanRate caps records read per second per replica. Zero is unlimited.
	ScanRate int `koanf:"scan_rate"`
}

// OutputSection configures report rendering.
type OutputSection struct {
	// Format is the report format on stdout: table, json or yaml.
	Format string `koanf:"format"`

	// ReportFile additionally writes the JSON report to this path.
	ReportFile string `koanf:"report_file"`

	// MetricsFile writes run metrics in Prometheus text format.
	MetricsFile string `koanf:"metrics_file"`
}

// LogSection configures logging.
type LogSection struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	MaskValues  bool   `koanf:"mask_values"`
	MaxValueLen int    `koanf:"max_value_len"`
}

// SeedSection configures fixture generation through an in-process cluster.
type SeedSection struct {
	// Keys is the number of set commands replicated.
	Keys int `koanf:"keys"`

	// KeyPrefix prefixes every generated key.
	KeyPrefix string `koanf:"key_prefix"`

	// ValueSize is the generated value length in bytes.
	ValueSize int `koanf:"value_size"`

	// ApplyTimeout bounds leader election and every apply.
	ApplyTimeout time.Duration `koanf:"apply_timeout"`

	// Tamper lists REPLICA:KEY=VALUE overrides written directly into a
	// replica store after the cluster stopped, bypassing the log.
	Tamper []string `koanf:"tamper"`
}

// ReplicaPath returns the store location of a replica:
// <base_dir>/<replica>/<store_dir>.
func (c *Config) ReplicaPath(replica string) string {
	return filepath.Join(c.BaseDir, replica, c.StoreDir)
}
