package core

import (
	"fmt"

	"go.uber.org/zap"

	"machinecore/internal/config"
	"machinecore/internal/logging"
	"machinecore/internal/metrics"
)

// NewLogger builds the zap-backed service logger from cfg. The returned zap
// logger should be synced by the caller on shutdown.
func NewLogger(cfg config.Config) (*logging.Adapter, *zap.Logger, error) {
	zl, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewAdapter(zl), zl, nil
}

// NewMetricsRecorder selects the metrics exporter named by cfg. The
// prometheus collector serves its registry via (*metrics.Collector).Handler;
// the expvar recorder publishes under a generated name because expvar names
// are process-global.
func NewMetricsRecorder(cfg config.Config) (MetricsRecorder, error) {
	switch cfg.MetricsExporter {
	case config.MetricsPrometheus:
		return metrics.NewCollector(cfg.MetricsNamespace), nil
	case config.MetricsExpvar:
		return metrics.NewExpvarRecorder(""), nil
	case config.MetricsNone, "":
		return noopMetricsRecorder{}, nil
	default:
		return nil, fmt.Errorf("unknown metrics exporter %s", cfg.MetricsExporter)
	}
}

var (
	_ Logger          = (*logging.Adapter)(nil)
	_ MetricsRecorder = (*metrics.Collector)(nil)
	_ MetricsRecorder = (*metrics.ExpvarRecorder)(nil)
)
