package verify

import (
	"fmt"
	"time"
)

// DiscrepancyKind tags a Discrepancy.
type DiscrepancyKind string

const (
	// KindCountMismatch means the replica holds a different number of keys
	// than the baseline. Keys present only on the replica surface this way.
	KindCountMismatch DiscrepancyKind = "count_mismatch"

	// KindMissingKey means a baseline key is absent from the replica.
	KindMissingKey DiscrepancyKind = "missing_key"

	// KindValueMismatch means the replica stores another value for a
	// baseline key.
	KindValueMismatch DiscrepancyKind = "value_mismatch"
)

// Discrepancy is one divergence between a replica and the baseline.
type Discrepancy struct {
	Kind    DiscrepancyKind
	Replica ReplicaID

	// Set for KindCountMismatch.
	BaselineCount int
	ReplicaCount  int

	// Set for KindMissingKey and KindValueMismatch.
	Key []byte

	// Set for KindValueMismatch.
	Expected []byte
	Actual   []byte
}

func (d Discrepancy) String() string {
	switch d.Kind {
	case KindCountMismatch:
		return fmt.Sprintf("%s: replica %s has %d keys, baseline has %d",
			d.Kind, d.Replica, d.ReplicaCount, d.BaselineCount)
	case KindMissingKey:
		return fmt.Sprintf("%s: replica %s lacks key %s",
			d.Kind, d.Replica, DisplayBytes(d.Key))
	case KindValueMismatch:
		return fmt.Sprintf("%s: replica %s key %s: expected %s, actual %s",
			d.Kind, d.Replica, DisplayBytes(d.Key), DisplayBytes(d.Expected), DisplayBytes(d.Actual))
	default:
		return string(d.Kind)
	}
}

// Verdict is the overall outcome of a run.
type Verdict string

const (
	// VerdictPass means at least two replicas were collected, none failed
	// and no discrepancy was found.
	VerdictPass Verdict = "pass"

	// VerdictDivergence means every replica was collected and at least one
	// discrepancy was found.
	VerdictDivergence Verdict = "divergence"

	// VerdictInfrastructureFailure means at least one replica could not be
	// opened or scanned. It wins over divergence.
	VerdictInfrastructureFailure Verdict = "infrastructure_failure"

	// VerdictInconclusive means a single replica was collected and there
	// was nothing to compare it with.
	VerdictInconclusive Verdict = "inconclusive"
)

// ReplicaSummary describes one replica in a report.
type ReplicaSummary struct {
	ID          ReplicaID
	Path        string
	Status      Status
	Records     int
	Fingerprint string
	Failure     FailureKind
	Error       string
	Duration    time.Duration
}

// Report is the result of a verification run. It is built once by the
// comparator and only read afterwards.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Baseline is empty when no replica was collected.
	Baseline ReplicaID

	// BaselineFallback is set when the configured baseline failed and the
	// first collected replica was used instead.
	BaselineFallback bool

	// Replicas lists every replica in configured order.
	Replicas []ReplicaSummary

	// Counts maps every collected replica to its dataset size.
	Counts map[ReplicaID]int

	// Discrepancies are ordered by replica, then by kind and key.
	Discrepancies []Discrepancy

	Verdict Verdict
	Passed  bool
}

// Failures returns the summaries of replicas that could not be collected.
func (r *Report) Failures() []ReplicaSummary {
	var out []ReplicaSummary
	for _, s := range r.Replicas {
		if s.Status != StatusCollected {
			out = append(out, s)
		}
	}
	return out
}

// CountByKind returns the number of discrepancies per kind.
func (r *Report) CountByKind() map[DiscrepancyKind]int {
	out := make(map[DiscrepancyKind]int)
	for _, d := range r.Discrepancies {
		out[d.Kind]++
	}
	return out
}
