package metric

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "replicacheck"

// Registry holds all metrics of one verification run.
//
// All methods are safe for concurrent use and are no-ops on a nil Registry.
type Registry struct {
	registry *prometheus.Registry

	// Collection metrics
	RecordsScanned  *prometheus.CounterVec
	ReplicaRecords  *prometheus.GaugeVec
	ReplicaFailures *prometheus.CounterVec
	CollectDuration *prometheus.HistogramVec

	// Comparison metrics
	Discrepancies *prometheus.CounterVec

	// Run metrics
	LastRunSuccess   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewRegistry creates a registry with every replicacheck metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RecordsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "records_scanned_total",
			Help:      "Records read from a replica store",
		}, []string{"replica"}),

		ReplicaRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "replica_records",
			Help:      "Records in the dataset collected from a replica",
		}, []string{"replica"}),

		ReplicaFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "failures_total",
			Help:      "Replica collection failures by kind",
		}, []string{"replica", "kind"}),

		CollectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "duration_seconds",
			Help:      "Time spent opening and scanning a replica store",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"replica"}),

		Discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "discrepancies_total",
			Help:      "Discrepancies found between a replica and the baseline",
		}, []string{"kind"}),

		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last verification run passed, 0 otherwise",
		}),

		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last verification run",
		}),
	}

	r.registry.MustRegister(
		r.RecordsScanned,
		r.ReplicaRecords,
		r.ReplicaFailures,
		r.CollectDuration,
		r.Discrepancies,
		r.LastRunSuccess,
		r.LastRunTimestamp,
		NewCollector(),
	)

	return r
}

// Gatherer returns the underlying registry for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// IncRecordsScanned counts one record read from replica.
func (r *Registry) IncRecordsScanned(replica string) {
	if r == nil {
		return
	}
	r.RecordsScanned.WithLabelValues(replica).Inc()
}

// SetReplicaRecords sets the size of the dataset collected from replica.
func (r *Registry) SetReplicaRecords(replica string, n int) {
	if r == nil {
		return
	}
	r.ReplicaRecords.WithLabelValues(replica).Set(float64(n))
}

// RecordReplicaFailure counts a collection failure of the given kind.
func (r *Registry) RecordReplicaFailure(replica, kind string) {
	if r == nil {
		return
	}
	r.ReplicaFailures.WithLabelValues(replica, kind).Inc()
}

// ObserveCollectDuration records how long collecting replica took.
func (r *Registry) ObserveCollectDuration(replica string, d time.Duration) {
	if r == nil {
		return
	}
	r.CollectDuration.WithLabelValues(replica).Observe(d.Seconds())
}

// RecordDiscrepancy counts one discrepancy of the given kind.
func (r *Registry) RecordDiscrepancy(kind string) {
	if r == nil {
		return
	}
	r.Discrepancies.WithLabelValues(kind).Inc()
}

// SetRunResult records the outcome of a finished run.
func (r *Registry) SetRunResult(passed bool, at time.Time) {
	if r == nil {
		return
	}
	if passed {
		r.LastRunSuccess.Set(1)
	} else {
		r.LastRunSuccess.Set(0)
	}
	r.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
