package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/yndnr/replicacheck/internal/cli/output"
	"github.com/yndnr/replicacheck/internal/verify"
)

// Process exit codes.
const (
	ExitPass           = 0
	ExitDivergence     = 1
	ExitInfrastructure = 2
	ExitInconclusive   = 3
	ExitUsage          = 64
)

// ExitCode maps a verdict to the process exit code.
func ExitCode(v verify.Verdict) int {
	switch v {
	case verify.VerdictPass:
		return ExitPass
	case verify.VerdictDivergence:
		return ExitDivergence
	case verify.VerdictInconclusive:
		return ExitInconclusive
	default:
		return ExitInfrastructure
	}
}

// Options configures an Emitter.
type Options struct {
	// Format of the report written to Out.
	Format output.Format

	// Out receives the report. Default: os.Stdout.
	Out io.Writer

	// Summary receives the one-line summary when Format is structured, so
	// that Out stays parseable. Default: os.Stderr.
	Summary io.Writer

	// ReportFile, when set, also receives the report as JSON.
	ReportFile string
}

// Emitter renders reports.
type Emitter struct {
	opts Options
}

// NewEmitter creates an emitter.
func NewEmitter(opts Options) *Emitter {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Summary == nil {
		opts.Summary = os.Stderr
	}
	if opts.Format == "" {
		opts.Format = output.FormatTable
	}
	return &Emitter{opts: opts}
}

// Emit renders rep and returns the process exit code. The returned error
// reports an output failure only; the exit code is valid either way.
func (e *Emitter) Emit(rep *verify.Report) (int, error) {
	code := ExitCode(rep.Verdict)
	view := NewView(rep)

	summaryOut := e.opts.Out
	if e.opts.Format.Structured() {
		if err := output.NewFormatter(e.opts.Format).Format(e.opts.Out, view); err != nil {
			return code, fmt.Errorf("render report: %w", err)
		}
		summaryOut = e.opts.Summary
	} else if err := e.renderTables(view); err != nil {
		return code, fmt.Errorf("render report: %w", err)
	}

	if _, err := fmt.Fprintln(summaryOut, Summary(rep)); err != nil {
		return code, fmt.Errorf("write summary: %w", err)
	}

	if e.opts.ReportFile != "" {
		if err := WriteFile(e.opts.ReportFile, view); err != nil {
			return code, err
		}
	}

	return code, nil
}

func (e *Emitter) renderTables(view View) error {
	w := e.opts.Out

	replicas := &output.Table{}
	replicas.SetHeaders("REPLICA", "STATUS", "RECORDS", "FINGERPRINT", "DURATION", "DETAIL")
	for _, r := range view.Replicas {
		detail := "-"
		switch {
		case r.Failure != "":
			detail = r.Failure + ": " + r.Error
		case r.Replica == view.Baseline:
			detail = "baseline"
		}
		replicas.AddRow(r.Replica, r.Status, humanize.Comma(int64(r.Records)), dash(r.Fingerprint), r.Duration, detail)
	}
	if err := replicas.Render(w); err != nil {
		return err
	}

	if len(view.Discrepancies) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	discrepancies := &output.Table{}
	discrepancies.SetHeaders("REPLICA", "KIND", "KEY", "EXPECTED", "ACTUAL")
	for _, d := range view.Discrepancies {
		if d.Kind == string(verify.KindCountMismatch) {
			discrepancies.AddRow(d.Replica, d.Kind, "-",
				english.Plural(*d.BaselineCount, "key", "keys"),
				english.Plural(*d.ReplicaCount, "key", "keys"))
			continue
		}
		discrepancies.AddRow(d.Replica, d.Kind, d.Key, derefDash(d.Expected), derefDash(d.Actual))
	}
	return discrepancies.Render(w)
}

// Summary returns the one-line human summary of rep.
func Summary(rep *verify.Report) string {
	replicas := english.Plural(len(rep.Replicas), "replica", "replicas")
	discrepancies := english.Plural(len(rep.Discrepancies), "discrepancy", "discrepancies")

	switch rep.Verdict {
	case verify.VerdictPass:
		return fmt.Sprintf("PASS: %s identical, %s records each (baseline %s)",
			replicas, humanize.Comma(int64(rep.Counts[rep.Baseline])), rep.Baseline)

	case verify.VerdictDivergence:
		return fmt.Sprintf("FAIL (divergence): %s against baseline %s [%s]",
			discrepancies, rep.Baseline, kinds(rep))

	case verify.VerdictInconclusive:
		return fmt.Sprintf("INCONCLUSIVE: only replica %s was collected (%s records), nothing to compare",
			rep.Baseline, humanize.Comma(int64(rep.Counts[rep.Baseline])))

	default:
		var failed []string
		for _, f := range rep.Failures() {
			failed = append(failed, fmt.Sprintf("%s: %s", f.ID, f.Failure))
		}
		msg := fmt.Sprintf("FAIL (infrastructure): %d of %s unreadable (%s)",
			len(failed), replicas, strings.Join(failed, ", "))
		if len(rep.Counts) > 1 {
			msg += fmt.Sprintf("; %s among the rest", discrepancies)
		}
		return msg
	}
}

// kinds renders the discrepancy count per kind in a fixed order.
func kinds(rep *verify.Report) string {
	byKind := rep.CountByKind()
	var parts []string
	for _, k := range []verify.DiscrepancyKind{
		verify.KindCountMismatch,
		verify.KindMissingKey,
		verify.KindValueMismatch,
	} {
		if n := byKind[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, " ")
}

// WriteFile writes view as indented JSON to path, replacing the file
// atomically.
func WriteFile(path string, view View) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("create report file: %w", err)
	}

	if err := (&output.JSONFormatter{}).Format(tmp, view); err != nil {
		tmp.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func derefDash(s *string) string {
	if s == nil {
		return "-"
	}
	return dash(*s)
}
