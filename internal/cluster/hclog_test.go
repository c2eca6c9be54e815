package cluster

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestHCLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var l hclog.Logger = newHCLogger(base, "raft")

	l.Info("entering follower state")
	if buf.Len() != 0 {
		t.Errorf("raft info should be logged at debug: %q", buf.String())
	}

	l.Warn("heartbeat timeout reached", "last-leader", "8001")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "component=raft") || !strings.Contains(out, "last-leader=8001") {
		t.Errorf("warn line = %q", out)
	}

	buf.Reset()
	l.Log(hclog.Error, "failed to contact", "server-id", "8002")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("Log(Error) = %q", buf.String())
	}

	if l.IsDebug() {
		t.Error("IsDebug() should follow the handler level")
	}
	if !l.IsWarn() {
		t.Error("IsWarn() should be true")
	}
	if l.GetLevel() != hclog.Warn {
		t.Errorf("GetLevel() = %v, want Warn", l.GetLevel())
	}
}

func TestHCLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := newHCLogger(slog.New(slog.NewTextHandler(&buf, nil)), "raft")

	named := l.Named("snapshot").With("id", "1-2-3")
	if named.Name() != "raft.snapshot" {
		t.Errorf("Name() = %q", named.Name())
	}

	named.Warn("retaining snapshots")
	if !strings.Contains(buf.String(), "subsystem=raft.snapshot") || !strings.Contains(buf.String(), "id=1-2-3") {
		t.Errorf("named line = %q", buf.String())
	}

	if l.StandardLogger(nil) == nil || l.StandardWriter(nil) == nil {
		t.Error("standard logger adapters should not be nil")
	}
}
