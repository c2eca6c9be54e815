package verify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yndnr/replicacheck/internal/storage"
	"github.com/yndnr/replicacheck/internal/telemetry/logger"
	"github.com/yndnr/replicacheck/internal/telemetry/metric"
)

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	// Store configures how replica stores are opened.
	Store storage.Options

	// Concurrency caps parallel workers. Zero runs one worker per replica.
	Concurrency int

	// ScanRate caps records read per second per replica. Zero is unlimited.
	ScanRate int

	// Metrics receives collection metrics. Optional.
	Metrics *metric.Registry
}

// Collector reads the dataset of every replica in parallel.
type Collector struct {
	cfg CollectorConfig
}

// NewCollector creates a collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return &Collector{cfg: cfg}
}

// Collect reads every replica into its own slot of a new aggregate.
//
// A failing replica is recorded in its slot and never stops the others.
// Collect returns after every worker has terminated.
func (c *Collector) Collect(ctx context.Context, replicas []Replica) *Aggregate {
	agg := NewAggregate(replicas)
	if len(replicas) == 0 {
		return agg
	}

	limit := c.cfg.Concurrency
	if limit <= 0 || limit > len(replicas) {
		limit = len(replicas)
	}

	// Workers never return an error, so a failure cannot cancel siblings.
	var g errgroup.Group
	g.SetLimit(limit)

	for i, r := range replicas {
		g.Go(func() error {
			agg.record(i, c.collect(ctx, r))
			return nil
		})
	}
	_ = g.Wait()

	return agg
}

// collect opens and scans one replica.
func (c *Collector) collect(ctx context.Context, r Replica) (res Result) {
	log := logger.L(ctx).With("replica", string(r.ID))
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: storage.ErrIteration.At(r.Path, fmt.Errorf("panic: %v", p))}
		}

		res.Duration = time.Since(start)
		c.cfg.Metrics.ObserveCollectDuration(string(r.ID), res.Duration)

		if res.Err != nil {
			res.Failure = classify(res.Err)
			c.cfg.Metrics.RecordReplicaFailure(string(r.ID), string(res.Failure))
			log.Error("replica collection failed",
				"path", r.Path,
				"kind", string(res.Failure),
				"error", res.Err)
			return
		}

		c.cfg.Metrics.SetReplicaRecords(string(r.ID), res.Dataset.Len())
		log.Info("replica collected",
			"path", r.Path,
			"records", res.Dataset.Len(),
			"fingerprint", res.Dataset.Fingerprint(),
			"duration", res.Duration)
	}()

	ds, err := c.scan(ctx, r, log)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Dataset: ds}
}

// scan reads the whole store of r. Records read before a failure are
// dropped with the builder.
func (c *Collector) scan(ctx context.Context, r Replica, log logger.Logger) (*Dataset, error) {
	opts := c.cfg.Store
	if opts.Logger == nil {
		opts.Logger = log.Slog()
	}

	snap, err := storage.Open(ctx, r.Path, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := snap.Close(); err != nil {
			log.Warn("close replica store failed", "path", r.Path, "error", err)
		}
	}()

	var limiter *rate.Limiter
	if c.cfg.ScanRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.ScanRate), c.cfg.ScanRate)
	}

	b := newDatasetBuilder()
	for rec, err := range snap.Records(ctx) {
		if err != nil {
			return nil, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, storage.ErrIteration.At(r.Path, err)
			}
		}

		log.Info("record read",
			"key", DisplayBytes(rec.Key),
			logger.AttrValue, DisplayBytes(rec.Value))
		c.cfg.Metrics.IncRecordsScanned(string(r.ID))

		if err := b.add(rec); err != nil {
			return nil, storage.ErrIteration.At(r.Path, err)
		}
	}

	return b.build(), nil
}
