package config

import (
	"time"

	"github.com/yndnr/replicacheck/internal/storage"
)

// Default configuration values.
const (
	DefaultBaseDir  = "."
	DefaultStoreDir = "stateMachine"

	DefaultOutputFormat = "table"

	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogMaxValueLen = 256

	DefaultSeedKeys         = 100
	DefaultSeedKeyPrefix    = "key-"
	DefaultSeedValueSize    = 32
	DefaultSeedApplyTimeout = 10 * time.Second
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BaseDir:  DefaultBaseDir,
		StoreDir: DefaultStoreDir,
		Store: StoreSection{
			Engine:      storage.DefaultEngine,
			OpenTimeout: storage.DefaultOpenTimeout,
			Bucket:      storage.DefaultBoltBucket,
			CacheSize:   storage.DefaultBadgerConfig().CacheSize,
		},
		Output: OutputSection{
			Format: DefaultOutputFormat,
		},
		Log: LogSection{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			MaxValueLen: DefaultLogMaxValueLen,
		},
		Seed: SeedSection{
			Keys:         DefaultSeedKeys,
			KeyPrefix:    DefaultSeedKeyPrefix,
			ValueSize:    DefaultSeedValueSize,
			ApplyTimeout: DefaultSeedApplyTimeout,
		},
	}
}

// StoreOptions converts the store section into storage open options.
func (c *Config) StoreOptions() storage.Options {
	opts := storage.DefaultOptions()
	opts.Engine = c.Store.Engine
	opts.OpenTimeout = c.Store.OpenTimeout
	opts.Bucket = c.Store.Bucket
	if c.Store.CacheSize > 0 {
		opts.Badger.CacheSize = c.Store.CacheSize
	}
	return opts
}
