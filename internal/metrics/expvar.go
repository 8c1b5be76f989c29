package metrics

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarRecorder publishes aggregate timings, result counters and moved
// amounts via expvar.
type ExpvarRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	moved     map[string]uint64
	machines  int
}

// ExpvarSnapshot is a read-only copy of the recorded values.
type ExpvarSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	Moved       map[string]uint64           `json:"moved_total"`
	Machines    int                         `json:"machines"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarRecorder publishes a recorder under name, or under a generated
// unique name when name is empty. expvar names are process-global, so a
// name may only be used once.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("machinecore_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		moved:     make(map[string]uint64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot copies the aggregated values.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, counts := range r.results {
		cp := make(map[string]int64, len(counts))
		for status, n := range counts {
			cp[status] = n
		}
		results[op] = cp
	}
	moved := make(map[string]uint64, len(r.moved))
	for cat, n := range r.moved {
		moved[cat] = n
	}
	return ExpvarSnapshot{
		DurationsMS: durations,
		Results:     results,
		Moved:       moved,
		Machines:    r.machines,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe records one operation outcome.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] += ms
	counts, ok := r.results[operation]
	if !ok {
		counts = make(map[string]int64, 2)
		r.results[operation] = counts
	}
	counts[result(success)]++
}

// Moved records a completed transfer.
func (r *ExpvarRecorder) Moved(category string, amount uint64) {
	r.mu.Lock()
	r.moved[category] += amount
	r.mu.Unlock()
}

// SetMachines records the number of registered machines.
func (r *ExpvarRecorder) SetMachines(n int) {
	r.mu.Lock()
	r.machines = n
	r.mu.Unlock()
}
