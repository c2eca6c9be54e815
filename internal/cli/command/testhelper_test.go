package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/replicacheck/internal/report"
	"github.com/yndnr/replicacheck/internal/storage"
)

// result captures one application run.
type result struct {
	stdout string
	stderr string
	code   int
	err    error
}

// run executes the application with args and maps the returned error to
// an exit status the way main does.
func run(t *testing.T, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.Run(append([]string{"replicacheck"}, args...))

	code := report.ExitPass
	var exit cli.ExitCoder
	switch {
	case errors.As(err, &exit):
		code = exit.ExitCode()
	case err != nil:
		code = report.ExitUsage
	}

	return result{stdout: stdout.String(), stderr: stderr.String(), code: code, err: err}
}

// writeReplica creates <baseDir>/<id>/stateMachine holding data.
func writeReplica(t *testing.T, baseDir, id string, data map[string]string) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := storage.NewBadgerEngine(filepath.Join(baseDir, id, "stateMachine"), storage.DefaultBadgerConfig(), quiet)
	if err != nil {
		t.Fatalf("NewBadgerEngine() error = %v", err)
	}
	for k, v := range data {
		if err := engine.Set(context.Background(), []byte(k), []byte(v)); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
