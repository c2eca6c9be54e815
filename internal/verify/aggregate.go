package verify

import (
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/replicacheck/internal/storage"
)

// Status is the collection outcome of one replica.
type Status string

const (
	// StatusCollected means the full dataset was read.
	StatusCollected Status = "collected"

	// StatusOpenFailed means the store could not be opened.
	StatusOpenFailed Status = "open_failed"

	// StatusScanFailed means the scan was interrupted; partial records are
	// discarded.
	StatusScanFailed Status = "scan_failed"
)

// FailureKind classifies a replica collection failure.
type FailureKind string

const (
	FailureDirectoryNotFound FailureKind = "directory_not_found"
	FailureStoreOpen         FailureKind = "store_open_failure"
	FailureIteration         FailureKind = "iteration_failure"
)

// Status returns the collection status a failure of this kind leads to.
func (k FailureKind) Status() Status {
	switch k {
	case FailureDirectoryNotFound, FailureStoreOpen:
		return StatusOpenFailed
	default:
		return StatusScanFailed
	}
}

// classify maps a collection error to its failure kind.
func classify(err error) FailureKind {
	switch {
	case errors.Is(err, storage.ErrDirectoryNotFound):
		return FailureDirectoryNotFound
	case errors.Is(err, storage.ErrStoreOpen):
		return FailureStoreOpen
	default:
		return FailureIteration
	}
}

// Result is the content of one replica slot.
type Result struct {
	Replica Replica

	// Dataset is nil when collection failed.
	Dataset *Dataset

	// Failure and Err describe a failed collection.
	Failure FailureKind
	Err     error

	Duration time.Duration

	recorded bool
}

// OK reports whether the dataset was collected.
func (r Result) OK() bool {
	return r.Dataset != nil
}

// Status returns the collection status.
func (r Result) Status() Status {
	if r.OK() {
		return StatusCollected
	}
	return r.Failure.Status()
}

// Aggregate holds one result slot per replica for a single run.
//
// Each worker writes only its own slot, exactly once, so slots need no
// locking. Readers must wait for every worker before reading.
type Aggregate struct {
	startedAt time.Time
	results   []Result
}

// NewAggregate creates an aggregate with one empty slot per replica, in
// the given order.
func NewAggregate(replicas []Replica) *Aggregate {
	a := &Aggregate{
		startedAt: time.Now(),
		results:   make([]Result, len(replicas)),
	}
	for i, r := range replicas {
		a.results[i].Replica = r
	}
	return a
}

// record stores the result of replica i.
func (a *Aggregate) record(i int, r Result) {
	if a.results[i].recorded {
		panic(fmt.Sprintf("verify: slot %d (%s) recorded twice", i, a.results[i].Replica.ID))
	}
	r.Replica = a.results[i].Replica
	r.recorded = true
	a.results[i] = r
}

// StartedAt returns when the run began.
func (a *Aggregate) StartedAt() time.Time {
	return a.startedAt
}

// Complete reports whether every slot has been recorded.
func (a *Aggregate) Complete() bool {
	for _, r := range a.results {
		if !r.recorded {
			return false
		}
	}
	return true
}

// Results returns every slot in replica order.
func (a *Aggregate) Results() []Result {
	out := make([]Result, len(a.results))
	copy(out, a.results)
	return out
}

// Collected returns the successful slots in replica order.
func (a *Aggregate) Collected() []Result {
	var out []Result
	for _, r := range a.results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the failed slots in replica order.
func (a *Aggregate) Failed() []Result {
	var out []Result
	for _, r := range a.results {
		if r.recorded && !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
