package verify

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/replicacheck/internal/storage"
	"github.com/yndnr/replicacheck/internal/telemetry/logger"
	"github.com/yndnr/replicacheck/internal/telemetry/metric"
)

type fixture struct {
	id   ReplicaID
	data map[string]string
	err  error
}

// aggregateOf builds a completed aggregate without touching disk.
func aggregateOf(t *testing.T, fixtures ...fixture) *Aggregate {
	t.Helper()

	replicas := make([]Replica, len(fixtures))
	for i, f := range fixtures {
		replicas[i] = Replica{ID: f.id, Path: "/data/" + string(f.id) + "/stateMachine"}
	}

	agg := NewAggregate(replicas)
	for i, f := range fixtures {
		if f.err != nil {
			agg.record(i, Result{Err: f.err, Failure: classify(f.err)})
			continue
		}
		agg.record(i, Result{Dataset: datasetOf(t, f.data)})
	}
	return agg
}

func testContext() context.Context {
	return logger.WithLogger(context.Background(), logger.Nop())
}

func compare(t *testing.T, baseline ReplicaID, fixtures ...fixture) *Report {
	t.Helper()
	return NewComparator(baseline, nil).Compare(testContext(), aggregateOf(t, fixtures...))
}

var baseData = map[string]string{"k1": "v1", "k2": "v2", "k3": "v3"}

func with(data map[string]string, changes map[string]string, drop ...string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	for k, v := range changes {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

func TestCompare_Identical(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("%d replicas", n), func(t *testing.T) {
			fixtures := make([]fixture, n)
			for i := range fixtures {
				fixtures[i] = fixture{id: ReplicaID(fmt.Sprint(8001 + i)), data: baseData}
			}

			rep := compare(t, "", fixtures...)
			if len(rep.Discrepancies) != 0 {
				t.Errorf("Discrepancies = %v, want none", rep.Discrepancies)
			}
			if rep.Verdict != VerdictPass || !rep.Passed {
				t.Errorf("Verdict = %s, Passed = %v, want pass", rep.Verdict, rep.Passed)
			}
			if len(rep.Counts) != n || rep.Counts["8001"] != 3 {
				t.Errorf("Counts = %v", rep.Counts)
			}
		})
	}
}

func TestCompare_ScenarioA(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "A", data: map[string]string{"k1": "v1", "k2": "v2"}},
		fixture{id: "B", data: map[string]string{"k1": "v1", "k2": "v3"}},
	)

	want := []Discrepancy{{
		Kind:     KindValueMismatch,
		Replica:  "B",
		Key:      []byte("k2"),
		Expected: []byte("v2"),
		Actual:   []byte("v3"),
	}}
	if diff := cmp.Diff(want, rep.Discrepancies); diff != "" {
		t.Errorf("Discrepancies mismatch (-want +got):\n%s", diff)
	}
	if rep.Baseline != "A" {
		t.Errorf("Baseline = %q, want A", rep.Baseline)
	}
	if rep.Verdict != VerdictDivergence || rep.Passed {
		t.Errorf("Verdict = %s, want divergence", rep.Verdict)
	}
}

func TestCompare_MissingKey(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "8001", data: baseData},
		fixture{id: "8002", data: with(baseData, nil, "k2")},
		fixture{id: "8003", data: baseData},
	)

	want := []Discrepancy{
		{Kind: KindCountMismatch, Replica: "8002", BaselineCount: 3, ReplicaCount: 2},
		{Kind: KindMissingKey, Replica: "8002", Key: []byte("k2")},
	}
	if diff := cmp.Diff(want, rep.Discrepancies); diff != "" {
		t.Errorf("Discrepancies mismatch (-want +got):\n%s", diff)
	}
}

func TestCompare_ExtraKey(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "8001", data: baseData},
		fixture{id: "8002", data: with(baseData, map[string]string{"k4": "v4"})},
	)

	want := []Discrepancy{
		{Kind: KindCountMismatch, Replica: "8002", BaselineCount: 3, ReplicaCount: 4},
	}
	if diff := cmp.Diff(want, rep.Discrepancies); diff != "" {
		t.Errorf("Discrepancies mismatch (-want +got):\n%s", diff)
	}
	if rep.Verdict != VerdictDivergence {
		t.Errorf("Verdict = %s, want divergence", rep.Verdict)
	}
}

func TestCompare_CollectsEverything(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "a", data: baseData},
		fixture{id: "c", data: with(baseData, map[string]string{"k1": "x", "k3": "y"})},
		fixture{id: "b", data: with(baseData, map[string]string{"k2": "z"}, "k1")},
	)

	// Replica order is the configured order, keys are in byte order.
	want := []Discrepancy{
		{Kind: KindValueMismatch, Replica: "c", Key: []byte("k1"), Expected: []byte("v1"), Actual: []byte("x")},
		{Kind: KindValueMismatch, Replica: "c", Key: []byte("k3"), Expected: []byte("v3"), Actual: []byte("y")},
		{Kind: KindCountMismatch, Replica: "b", BaselineCount: 3, ReplicaCount: 2},
		{Kind: KindMissingKey, Replica: "b", Key: []byte("k1")},
		{Kind: KindValueMismatch, Replica: "b", Key: []byte("k2"), Expected: []byte("v2"), Actual: []byte("z")},
	}
	if diff := cmp.Diff(want, rep.Discrepancies); diff != "" {
		t.Errorf("Discrepancies mismatch (-want +got):\n%s", diff)
	}

	// Same input, same output.
	again := compare(t, "",
		fixture{id: "a", data: baseData},
		fixture{id: "c", data: with(baseData, map[string]string{"k1": "x", "k3": "y"})},
		fixture{id: "b", data: with(baseData, map[string]string{"k2": "z"}, "k1")},
	)
	if diff := cmp.Diff(rep.Discrepancies, again.Discrepancies); diff != "" {
		t.Errorf("comparison is not stable:\n%s", diff)
	}
}

func TestCompare_ZeroCollected(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "a", err: storage.ErrDirectoryNotFound.At("/data/a", nil)},
		fixture{id: "b", err: storage.ErrStoreOpen.At("/data/b", nil)},
	)

	if rep.Verdict != VerdictInfrastructureFailure || rep.Passed {
		t.Errorf("Verdict = %s, want infrastructure_failure", rep.Verdict)
	}
	if rep.Baseline != "" {
		t.Errorf("Baseline = %q, want none", rep.Baseline)
	}
	if len(rep.Failures()) != 2 {
		t.Errorf("Failures() = %d, want 2", len(rep.Failures()))
	}
}

func TestCompare_IncompleteAggregate(t *testing.T) {
	agg := NewAggregate([]Replica{
		{ID: "a", Path: "/data/a/stateMachine"},
		{ID: "b", Path: "/data/b/stateMachine"},
	})
	agg.record(0, Result{Dataset: datasetOf(t, baseData)})

	rep := NewComparator("", nil).Compare(testContext(), agg)

	if rep.Verdict != VerdictInfrastructureFailure || rep.Passed {
		t.Errorf("Verdict = %s, want infrastructure_failure", rep.Verdict)
	}
	if rep.Baseline != "" || len(rep.Replicas) != 0 || len(rep.Discrepancies) != 0 {
		t.Errorf("partial aggregate was compared: %+v", rep)
	}
}

func TestCompare_SingleCollected(t *testing.T) {
	rep := compare(t, "", fixture{id: "a", data: baseData})

	if rep.Verdict != VerdictInconclusive {
		t.Errorf("Verdict = %s, want inconclusive", rep.Verdict)
	}
	if rep.Passed {
		t.Error("a single replica must not pass")
	}
}

func TestCompare_FailureWinsOverDivergence(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "a", data: baseData},
		fixture{id: "b", data: with(baseData, map[string]string{"k1": "x"})},
		fixture{id: "c", err: storage.ErrDirectoryNotFound.At("/data/c", nil)},
	)

	if rep.Verdict != VerdictInfrastructureFailure {
		t.Errorf("Verdict = %s, want infrastructure_failure", rep.Verdict)
	}
	if len(rep.Discrepancies) != 1 {
		t.Errorf("Discrepancies = %d, want 1 among the remaining replicas", len(rep.Discrepancies))
	}

	fails := rep.Failures()
	if len(fails) != 1 || fails[0].ID != "c" {
		t.Fatalf("Failures() = %v", fails)
	}
	if fails[0].Status != StatusOpenFailed || fails[0].Failure != FailureDirectoryNotFound {
		t.Errorf("failure = %s/%s", fails[0].Status, fails[0].Failure)
	}
	if _, ok := rep.Counts["c"]; ok {
		t.Error("failed replica should not have a count")
	}
}

func TestCompare_SingleCollectedWithFailure(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "a", data: baseData},
		fixture{id: "b", err: storage.ErrIteration.At("/data/b", nil)},
	)

	if rep.Verdict != VerdictInfrastructureFailure {
		t.Errorf("Verdict = %s, want infrastructure_failure", rep.Verdict)
	}
	if got := rep.Failures()[0].Status; got != StatusScanFailed {
		t.Errorf("Status = %s, want %s", got, StatusScanFailed)
	}
}

func TestCompare_ConfiguredBaseline(t *testing.T) {
	rep := compare(t, "b",
		fixture{id: "a", data: with(baseData, map[string]string{"k1": "x"})},
		fixture{id: "b", data: baseData},
	)

	if rep.Baseline != "b" || rep.BaselineFallback {
		t.Errorf("Baseline = %q (fallback %v), want b", rep.Baseline, rep.BaselineFallback)
	}
	want := []Discrepancy{
		{Kind: KindValueMismatch, Replica: "a", Key: []byte("k1"), Expected: []byte("v1"), Actual: []byte("x")},
	}
	if diff := cmp.Diff(want, rep.Discrepancies); diff != "" {
		t.Errorf("Discrepancies mismatch (-want +got):\n%s", diff)
	}
}

func TestCompare_BaselineFallback(t *testing.T) {
	rep := compare(t, "a",
		fixture{id: "a", err: storage.ErrStoreOpen.At("/data/a", nil)},
		fixture{id: "b", data: baseData},
		fixture{id: "c", data: baseData},
	)

	if rep.Baseline != "b" || !rep.BaselineFallback {
		t.Errorf("Baseline = %q (fallback %v), want b with fallback", rep.Baseline, rep.BaselineFallback)
	}
	if len(rep.Discrepancies) != 0 {
		t.Errorf("Discrepancies = %v, want none", rep.Discrepancies)
	}
}

func TestCompare_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	agg := aggregateOf(t,
		fixture{id: "a", data: baseData},
		fixture{id: "b", data: with(baseData, nil, "k3")},
	)

	rep := NewComparator("", reg).Compare(testContext(), agg)
	if rep.Verdict != VerdictDivergence {
		t.Fatalf("Verdict = %s", rep.Verdict)
	}

	if got := testutil.ToFloat64(reg.Discrepancies.WithLabelValues(string(KindMissingKey))); got != 1 {
		t.Errorf("missing_key metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.LastRunSuccess); got != 0 {
		t.Errorf("last run success = %v, want 0", got)
	}
}

func TestReport_CountByKind(t *testing.T) {
	rep := compare(t, "",
		fixture{id: "a", data: baseData},
		fixture{id: "b", data: with(baseData, map[string]string{"k1": "x"}, "k2")},
	)

	want := map[DiscrepancyKind]int{
		KindCountMismatch: 1,
		KindMissingKey:    1,
		KindValueMismatch: 1,
	}
	if diff := cmp.Diff(want, rep.CountByKind()); diff != "" {
		t.Errorf("CountByKind() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscrepancy_String(t *testing.T) {
	tests := []struct {
		d    Discrepancy
		want string
	}{
		{
			Discrepancy{Kind: KindCountMismatch, Replica: "b", BaselineCount: 3, ReplicaCount: 2},
			"count_mismatch: replica b has 2 keys, baseline has 3",
		},
		{
			Discrepancy{Kind: KindMissingKey, Replica: "b", Key: []byte("k1")},
			"missing_key: replica b lacks key k1",
		},
		{
			Discrepancy{Kind: KindValueMismatch, Replica: "B", Key: []byte("k2"), Expected: []byte("v2"), Actual: []byte("v3")},
			"value_mismatch: replica B key k2: expected v2, actual v3",
		},
	}

	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
