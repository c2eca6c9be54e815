package verify

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/replicacheck/internal/telemetry/logger"
)

// Verifier runs collection then comparison.
type Verifier struct {
	collector  *Collector
	comparator *Comparator
}

// NewVerifier creates a verifier.
func NewVerifier(collector *Collector, comparator *Comparator) *Verifier {
	return &Verifier{collector: collector, comparator: comparator}
}

// Run verifies replicas and returns the report. The comparison starts only
// after every replica has been collected or has failed.
func (v *Verifier) Run(ctx context.Context, replicas []Replica) *Report {
	runID := ulid.Make().String()
	ctx = logger.WithRunID(ctx, runID)

	logger.L(ctx).Info("verification started", "replicas", len(replicas))

	agg := v.collector.Collect(ctx, replicas)
	return v.comparator.Compare(ctx, agg)
}
