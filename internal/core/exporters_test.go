package core

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"machinecore/internal/config"
	"machinecore/internal/metrics"
	"machinecore/pkg/ioconfig"
)

func TestOpenWiresPrometheusCollector(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.LoadFrom(map[string]string{
		"MACHINECORE_STORAGE_DRIVER":    "memory",
		"MACHINECORE_ARCHIVE_DRIVER":    "none",
		"MACHINECORE_LOG_LEVEL":         "error",
		"MACHINECORE_METRICS_NAMESPACE": "plant",
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	svc, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = svc.Close() }()

	register(t, svc, "src", "dst")
	if err := produce(svc, "src", 10); err != nil {
		t.Fatalf("produce: %v", err)
	}
	if _, err := svc.Transfer(ctx, ingot, "src", ioconfig.Bottom, "dst", ioconfig.Top, 10); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	collector, ok := svc.Metrics().(*metrics.Collector)
	if !ok {
		t.Fatalf("expected prometheus collector, got %T", svc.Metrics())
	}
	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`plant_service_machines 2`,
		`plant_transfer_moved_total{category="item"} 10`,
		`plant_service_operations_total{operation="transfer",result="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition output:\n%s", want, body)
		}
	}
}

func TestNewMetricsRecorderExporters(t *testing.T) {
	rec, err := NewMetricsRecorder(config.Config{MetricsExporter: config.MetricsExpvar})
	if err != nil {
		t.Fatalf("expvar: %v", err)
	}
	exp, ok := rec.(*metrics.ExpvarRecorder)
	if !ok {
		t.Fatalf("expected expvar recorder, got %T", rec)
	}
	exp.SetMachines(3)
	if got := exp.Snapshot().Machines; got != 3 {
		t.Fatalf("expected 3 machines, got %d", got)
	}

	rec, err = NewMetricsRecorder(config.Config{MetricsExporter: config.MetricsNone})
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if _, ok := rec.(noopMetricsRecorder); !ok {
		t.Fatalf("expected noop recorder, got %T", rec)
	}

	if _, err := NewMetricsRecorder(config.Config{MetricsExporter: "statsd"}); err == nil {
		t.Fatalf("expected unknown exporter error")
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, _, err := NewLogger(config.Config{LogLevel: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := Open(context.Background(), config.Config{StorageDriver: config.StorageMemory, LogFormat: "xml"}); err == nil {
		t.Fatalf("expected open to fail on bad log format")
	}
}
