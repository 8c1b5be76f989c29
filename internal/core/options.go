package core

import (
	"github.com/benbjohnson/clock"

	"machinecore/internal/archive"
)

const (
	defaultCacheSize       = 1024
	defaultSaveConcurrency = 4
)

type serviceOptions struct {
	logger          Logger
	metrics         MetricsRecorder
	tracer          Tracer
	clock           clock.Clock
	store           StateStore
	archiver        *archive.Archiver
	cacheSize       int
	saveConcurrency int
}

func defaultOptions() serviceOptions {
	return serviceOptions{
		logger:          noopLogger{},
		metrics:         noopMetricsRecorder{},
		tracer:          noopTracer{},
		clock:           clock.New(),
		cacheSize:       defaultCacheSize,
		saveConcurrency: defaultSaveConcurrency,
	}
}

// Option customises a Service.
type Option func(*serviceOptions)

// WithLogger sets the service logger. Nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the span source.
func WithTracer(t Tracer) Option {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock overrides the time source used for operation timings.
func WithClock(c clock.Clock) Option {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithStateStore enables Save, SaveAll and Load.
func WithStateStore(s StateStore) Option {
	return func(o *serviceOptions) { o.store = s }
}

// WithArchiver enables Archive and RestoreArchive.
func WithArchiver(a *archive.Archiver) Option {
	return func(o *serviceOptions) { o.archiver = a }
}

// WithCacheSize bounds the number of machines whose last saved payload
// digest is remembered.
func WithCacheSize(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithSaveConcurrency bounds the number of concurrent saves in SaveAll.
func WithSaveConcurrency(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.saveConcurrency = n
		}
	}
}
