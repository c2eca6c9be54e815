package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/yndnr/replicacheck/internal/storage"
)

var outputFormats = []string{"table", "json", "yaml"}

// Verify validates the configuration used by a verification run.
func Verify(cfg *Config) error {
	if err := verifyReplicas(cfg); err != nil {
		return err
	}
	if err := verifyStore(&cfg.Store); err != nil {
		return err
	}
	if err := verifyRun(cfg); err != nil {
		return err
	}
	return verifyOutput(&cfg.Output)
}

// VerifySeed validates the configuration used to seed fixtures.
func VerifySeed(cfg *Config) error {
	if err := verifyReplicas(cfg); err != nil {
		return err
	}
	if cfg.Seed.Keys < 0 {
		return errors.New("seed.keys must not be negative")
	}
	if cfg.Seed.ValueSize < 0 {
		return errors.New("seed.value_size must not be negative")
	}
	if cfg.Seed.ApplyTimeout <= 0 {
		return errors.New("seed.apply_timeout must be positive")
	}
	return nil
}

func verifyReplicas(cfg *Config) error {
	if len(cfg.Replicas) == 0 {
		return errors.New("replicas: at least one replica is required")
	}

	seen := make(map[string]bool, len(cfg.Replicas))
	for _, r := range cfg.Replicas {
		if strings.TrimSpace(r) == "" {
			return errors.New("replicas: empty replica identifier")
		}
		if strings.ContainsAny(r, `/\`) {
			return fmt.Errorf("replicas: identifier %q must not contain path separators", r)
		}
		if seen[r] {
			return fmt.Errorf("replicas: duplicate replica %q", r)
		}
		seen[r] = true
	}

	if cfg.BaseDir == "" {
		return errors.New("base_dir is required")
	}
	if cfg.StoreDir == "" {
		return errors.New("store_dir is required")
	}
	return nil
}

func verifyStore(cfg *StoreSection) error {
	if !slices.Contains(storage.Engines(), cfg.Engine) {
		return fmt.Errorf("store.engine %q is not one of %s", cfg.Engine, strings.Join(storage.Engines(), ", "))
	}
	if cfg.OpenTimeout < 0 {
		return errors.New("store.open_timeout must not be negative")
	}
	if cfg.CacheSize < 0 {
		return errors.New("store.cache_size must not be negative")
	}
	return nil
}

func verifyRun(cfg *Config) error {
	if cfg.Verify.Baseline != "" && !slices.Contains(cfg.Replicas, cfg.Verify.Baseline) {
		return fmt.Errorf("verify.baseline %q is not a configured replica", cfg.Verify.Baseline)
	}
	if cfg.Verify.Concurrency < 0 {
		return errors.New("verify.concurrency must not be negative")
	}
	if cfg.Verify.ScanRate < 0 {
		return errors.New("verify.scan_rate must not be negative")
	}
	return nil
}

func verifyOutput(cfg *OutputSection) error {
	if !slices.Contains(outputFormats, cfg.Format) {
		return fmt.Errorf("output.format %q is not one of %s", cfg.Format, strings.Join(outputFormats, ", "))
	}
	return nil
}
