package metric

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.RecordsScanned == nil {
		t.Error("RecordsScanned is nil")
	}
	if r.Discrepancies == nil {
		t.Error("Discrepancies is nil")
	}
	if r.Gatherer() == nil {
		t.Error("Gatherer() returned nil")
	}
}

func TestCollectMetrics(t *testing.T) {
	r := NewRegistry()

	r.IncRecordsScanned("8001")
	r.IncRecordsScanned("8001")
	r.IncRecordsScanned("8002")
	r.SetReplicaRecords("8001", 2)
	r.RecordReplicaFailure("8003", "directory_not_found")
	r.ObserveCollectDuration("8001", 15*time.Millisecond)

	if got := testutil.ToFloat64(r.RecordsScanned.WithLabelValues("8001")); got != 2 {
		t.Errorf("records scanned for 8001 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.RecordsScanned.WithLabelValues("8002")); got != 1 {
		t.Errorf("records scanned for 8002 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.ReplicaRecords.WithLabelValues("8001")); got != 2 {
		t.Errorf("replica records for 8001 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.ReplicaFailures.WithLabelValues("8003", "directory_not_found")); got != 1 {
		t.Errorf("failures for 8003 = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.CollectDuration); got != 1 {
		t.Errorf("collect duration series = %d, want 1", got)
	}
}

func TestRunMetrics(t *testing.T) {
	r := NewRegistry()
	at := time.Unix(1700000000, 0)

	r.RecordDiscrepancy("value_mismatch")
	r.RecordDiscrepancy("value_mismatch")
	r.RecordDiscrepancy("count_mismatch")
	r.SetRunResult(false, at)

	if got := testutil.ToFloat64(r.Discrepancies.WithLabelValues("value_mismatch")); got != 2 {
		t.Errorf("value_mismatch = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.LastRunSuccess); got != 0 {
		t.Errorf("last run success = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.LastRunTimestamp); got != 1700000000 {
		t.Errorf("last run timestamp = %v, want 1700000000", got)
	}

	r.SetRunResult(true, at)
	if got := testutil.ToFloat64(r.LastRunSuccess); got != 1 {
		t.Errorf("last run success = %v, want 1", got)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// Should not panic
	r.IncRecordsScanned("a")
	r.SetReplicaRecords("a", 1)
	r.RecordReplicaFailure("a", "store_open_failure")
	r.ObserveCollectDuration("a", time.Second)
	r.RecordDiscrepancy("missing_key")
	r.SetRunResult(true, time.Now())
}

func TestCollector(t *testing.T) {
	if got := testutil.CollectAndCount(NewCollector(), "replicacheck_build_info"); got != 1 {
		t.Errorf("build info series = %d, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.SetReplicaRecords("8001", 1000)
	r.SetRunResult(true, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "replicacheck.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	body := string(data)

	for _, want := range []string{
		`replicacheck_collect_replica_records{replica="8001"} 1000`,
		"replicacheck_last_run_success 1",
		"replicacheck_build_info{",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestWriteTextfile_BadPath(t *testing.T) {
	r := NewRegistry()
	path := filepath.Join(t.TempDir(), "missing", "dir", "replicacheck.prom")
	if err := r.WriteTextfile(path); err == nil {
		t.Error("WriteTextfile() should fail for a missing directory")
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.IncRecordsScanned("8001")
				r.ObserveCollectDuration("8001", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(r.RecordsScanned.WithLabelValues("8001")); got != 1000 {
		t.Errorf("records scanned = %v, want 1000", got)
	}
}
