package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdapterForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewAdapter(zap.New(core)).With("machine", "m-1")

	a.Debug("tick", "ok", true)
	a.Info("saved", "bytes", 42)
	a.Warn("slow save")
	a.Error("save failed", "err", "disk full")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[1].Message != "saved" || entries[1].ContextMap()["bytes"] != int64(42) {
		t.Fatalf("unexpected entry: %+v", entries[1])
	}
	if entries[3].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[3].Level)
	}
	for _, e := range entries {
		if e.ContextMap()["machine"] != "m-1" {
			t.Fatalf("expected machine field on %q", e.Message)
		}
	}
}

func TestNilAdapterIsNoop(t *testing.T) {
	a := NewAdapter(nil)
	a.Info("dropped")
	_ = a.Sync()
}

func TestNew(t *testing.T) {
	if _, err := New("info", "json"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := New("debug", "console"); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := New("loud", "json"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
