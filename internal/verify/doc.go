// Package verify checks that the state-machine stores of every replica hold
// the same key-value dataset.
//
// A run is an explicit two-phase pipeline:
//
//   - Collector.Collect opens every replica store in its own goroutine and
//     materializes a Dataset into a per-replica slot of an Aggregate. A
//     replica that cannot be opened or scanned gets a recorded failure and
//     never affects the other replicas. Collect returns only after every
//     worker finished.
//   - Comparator.Compare picks a baseline among the collected replicas and
//     diffs every other replica against it, producing a Report.
//
// Verifier.Run composes both phases and tags the run with a ULID.
package verify
