// Package metric provides Prometheus metrics for replicacheck.
//
// A verification run is a short-lived batch job, so metrics are not served
// over HTTP. They accumulate in a private registry during the run and are
// written once, in the Prometheus text format, to the file named by
// --metrics-file (node_exporter textfile collector layout).
//
// Metrics include:
//
//   - records scanned and collected per replica
//   - collection failures per replica and kind
//   - collection latency per replica
//   - discrepancies per kind
//   - outcome and timestamp of the last run
//   - build information
package metric
