package report

import (
	"time"

	"github.com/yndnr/replicacheck/internal/infra/buildinfo"
	"github.com/yndnr/replicacheck/internal/verify"
)

// View is the machine-readable form of a report. Keys and values are
// rendered with verify.DisplayBytes.
type View struct {
	RunID            string            `json:"run_id" yaml:"run_id"`
	Version          string            `json:"version" yaml:"version"`
	StartedAt        time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time         `json:"finished_at" yaml:"finished_at"`
	Duration         string            `json:"duration" yaml:"duration"`
	Verdict          string            `json:"verdict" yaml:"verdict"`
	Passed           bool              `json:"passed" yaml:"passed"`
	ExitCode         int               `json:"exit_code" yaml:"exit_code"`
	Baseline         string            `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	BaselineFallback bool              `json:"baseline_fallback,omitempty" yaml:"baseline_fallback,omitempty"`
	Counts           map[string]int    `json:"counts" yaml:"counts"`
	Replicas         []ReplicaView     `json:"replicas" yaml:"replicas"`
	Discrepancies    []DiscrepancyView `json:"discrepancies" yaml:"discrepancies"`
}

// ReplicaView describes one replica.
type ReplicaView struct {
	Replica     string `json:"replica" yaml:"replica"`
	Status      string `json:"status" yaml:"status"`
	Records     int    `json:"records" yaml:"records"`
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Failure     string `json:"failure,omitempty" yaml:"failure,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	Duration    string `json:"duration" yaml:"duration"`
	Path        string `json:"path" yaml:"path"`
}

// DiscrepancyView describes one discrepancy. Optional fields are pointers
// so that zero counts and empty values are still rendered when they apply.
type DiscrepancyView struct {
	Kind          string  `json:"kind" yaml:"kind"`
	Replica       string  `json:"replica" yaml:"replica"`
	Key           string  `json:"key,omitempty" yaml:"key,omitempty"`
	Expected      *string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual        *string `json:"actual,omitempty" yaml:"actual,omitempty"`
	BaselineCount *int    `json:"baseline_count,omitempty" yaml:"baseline_count,omitempty"`
	ReplicaCount  *int    `json:"replica_count,omitempty" yaml:"replica_count,omitempty"`
}

// NewView converts a report.
func NewView(rep *verify.Report) View {
	v := View{
		RunID:            rep.RunID,
		Version:          buildinfo.Version,
		StartedAt:        rep.StartedAt,
		FinishedAt:       rep.FinishedAt,
		Duration:         rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond).String(),
		Verdict:          string(rep.Verdict),
		Passed:           rep.Passed,
		ExitCode:         ExitCode(rep.Verdict),
		Baseline:         string(rep.Baseline),
		BaselineFallback: rep.BaselineFallback,
		Counts:           make(map[string]int, len(rep.Counts)),
		Replicas:         make([]ReplicaView, 0, len(rep.Replicas)),
		Discrepancies:    make([]DiscrepancyView, 0, len(rep.Discrepancies)),
	}

	for id, n := range rep.Counts {
		v.Counts[string(id)] = n
	}

	for _, s := range rep.Replicas {
		v.Replicas = append(v.Replicas, ReplicaView{
			Replica:     string(s.ID),
			Status:      string(s.Status),
			Records:     s.Records,
			Fingerprint: s.Fingerprint,
			Failure:     string(s.Failure),
			Error:       s.Error,
			Duration:    s.Duration.Round(time.Millisecond).String(),
			Path:        s.Path,
		})
	}

	for _, d := range rep.Discrepancies {
		dv := DiscrepancyView{
			Kind:    string(d.Kind),
			Replica: string(d.Replica),
		}
		switch d.Kind {
		case verify.KindCountMismatch:
			dv.BaselineCount = &d.BaselineCount
			dv.ReplicaCount = &d.ReplicaCount
		case verify.KindMissingKey:
			dv.Key = verify.DisplayBytes(d.Key)
		case verify.KindValueMismatch:
			dv.Key = verify.DisplayBytes(d.Key)
			expected, actual := verify.DisplayBytes(d.Expected), verify.DisplayBytes(d.Actual)
			dv.Expected, dv.Actual = &expected, &actual
		}
		v.Discrepancies = append(v.Discrepancies, dv)
	}

	return v
}
