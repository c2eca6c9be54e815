package verify

import (
	"bytes"
	"context"
	"time"

	"github.com/yndnr/replicacheck/internal/telemetry/logger"
	"github.com/yndnr/replicacheck/internal/telemetry/metric"
)

// Comparator diffs collected datasets against a baseline replica.
type Comparator struct {
	baseline ReplicaID
	metrics  *metric.Registry
}

// NewComparator creates a comparator. An empty baseline selects the first
// collected replica. metrics may be nil.
func NewComparator(baseline ReplicaID, metrics *metric.Registry) *Comparator {
	return &Comparator{baseline: baseline, metrics: metrics}
}

// Compare builds the report of a completed aggregate. An aggregate with
// unrecorded slots is not compared and yields an infrastructure failure.
//
// Failed replicas are listed but not compared. Every collected replica
// other than the baseline is compared key by key; comparison never stops
// at the first discrepancy.
func (c *Comparator) Compare(ctx context.Context, agg *Aggregate) *Report {
	log := logger.L(ctx)

	rep := &Report{
		RunID:     logger.RunIDFromContext(ctx),
		StartedAt: agg.StartedAt(),
		Counts:    make(map[ReplicaID]int),
	}

	if !agg.Complete() {
		var pending []string
		for _, res := range agg.Results() {
			if !res.recorded {
				pending = append(pending, string(res.Replica.ID))
			}
		}
		log.Error("aggregate is incomplete, refusing to compare", "pending", pending)
		return c.finish(ctx, rep, VerdictInfrastructureFailure)
	}

	for _, res := range agg.Results() {
		s := ReplicaSummary{
			ID:       res.Replica.ID,
			Path:     res.Replica.Path,
			Status:   res.Status(),
			Failure:  res.Failure,
			Duration: res.Duration,
		}
		if res.Err != nil {
			s.Error = res.Err.Error()
		}
		if res.OK() {
			s.Records = res.Dataset.Len()
			s.Fingerprint = res.Dataset.Fingerprint()
			rep.Counts[res.Replica.ID] = res.Dataset.Len()
		}
		rep.Replicas = append(rep.Replicas, s)
	}

	collected := agg.Collected()
	failed := len(agg.Failed()) > 0

	if len(collected) == 0 {
		log.Error("no replica could be collected, nothing to compare")
		return c.finish(ctx, rep, VerdictInfrastructureFailure)
	}

	base := c.selectBaseline(collected)
	rep.Baseline = base.Replica.ID
	rep.BaselineFallback = c.baseline != "" && c.baseline != base.Replica.ID
	if rep.BaselineFallback {
		log.Warn("configured baseline was not collected, falling back",
			"configured", string(c.baseline),
			"baseline", string(base.Replica.ID))
	}

	for _, res := range collected {
		if res.Replica.ID == base.Replica.ID {
			continue
		}
		rep.Discrepancies = append(rep.Discrepancies, diff(base, res)...)
	}

	for _, d := range rep.Discrepancies {
		c.metrics.RecordDiscrepancy(string(d.Kind))
		logDiscrepancy(log, d)
	}

	switch {
	case failed:
		return c.finish(ctx, rep, VerdictInfrastructureFailure)
	case len(collected) == 1:
		return c.finish(ctx, rep, VerdictInconclusive)
	case len(rep.Discrepancies) > 0:
		return c.finish(ctx, rep, VerdictDivergence)
	default:
		return c.finish(ctx, rep, VerdictPass)
	}
}

func (c *Comparator) finish(ctx context.Context, rep *Report, v Verdict) *Report {
	rep.Verdict = v
	rep.Passed = v == VerdictPass
	rep.FinishedAt = time.Now()

	c.metrics.SetRunResult(rep.Passed, rep.FinishedAt)
	logger.L(ctx).Info("comparison finished",
		"verdict", string(v),
		"baseline", string(rep.Baseline),
		"discrepancies", len(rep.Discrepancies))
	return rep
}

// selectBaseline returns the configured baseline if it was collected and
// the first collected replica otherwise.
func (c *Comparator) selectBaseline(collected []Result) Result {
	if c.baseline != "" {
		for _, res := range collected {
			if res.Replica.ID == c.baseline {
				return res
			}
		}
	}
	return collected[0]
}

// diff compares one replica with the baseline. A count mismatch comes
// first, then per-key findings in key order.
func diff(base, res Result) []Discrepancy {
	var out []Discrepancy
	bds, rds := base.Dataset, res.Dataset
	id := res.Replica.ID

	if rds.Len() != bds.Len() {
		out = append(out, Discrepancy{
			Kind:          KindCountMismatch,
			Replica:       id,
			BaselineCount: bds.Len(),
			ReplicaCount:  rds.Len(),
		})
	}

	for _, key := range bds.Keys() {
		want, _ := bds.Get(key)
		got, ok := rds.Get(key)
		switch {
		case !ok:
			out = append(out, Discrepancy{Kind: KindMissingKey, Replica: id, Key: key})
		case !bytes.Equal(want, got):
			out = append(out, Discrepancy{
				Kind:     KindValueMismatch,
				Replica:  id,
				Key:      key,
				Expected: want,
				Actual:   got,
			})
		}
	}

	return out
}

func logDiscrepancy(log logger.Logger, d Discrepancy) {
	switch d.Kind {
	case KindCountMismatch:
		log.Warn("count mismatch",
			"replica", string(d.Replica),
			"baseline_count", d.BaselineCount,
			"replica_count", d.ReplicaCount)
	case KindMissingKey:
		log.Warn("missing key",
			"replica", string(d.Replica),
			"key", DisplayBytes(d.Key))
	case KindValueMismatch:
		log.Warn("value mismatch",
			"replica", string(d.Replica),
			"key", DisplayBytes(d.Key),
			logger.AttrExpected, DisplayBytes(d.Expected),
			logger.AttrActual, DisplayBytes(d.Actual))
	}
}
