// Package core hosts the machine registry service. The service owns the
// per-machine mutual exclusion the pkg/ packages leave to their host and
// orchestrates persistence, archiving, logging and metrics around it.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"machinecore/internal/archive"
	"machinecore/pkg/ioconfig"
	"machinecore/pkg/machine"
	"machinecore/pkg/resource"
	"machinecore/pkg/transaction"
)

var (
	// ErrNotFound is returned for an unregistered machine id.
	ErrNotFound = errors.New("core: machine not found")
	// ErrExists is returned when registering a taken machine id.
	ErrExists = errors.New("core: machine already registered")
	// ErrNoStore is returned by persistence operations without a state store.
	ErrNoStore = errors.New("core: no state store configured")
	// ErrNoArchive is returned by archive operations without an archiver.
	ErrNoArchive = errors.New("core: no archive configured")
)

type entry struct {
	mu sync.Mutex
	m  *machine.Machine
}

// Service is a registry of machines that serialises every operation per
// machine. It is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	machines map[string]*entry
	digests  *lru.Cache[string, uint64]
	opts     serviceOptions
}

// NewService constructs a service.
func NewService(opts ...Option) (*Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	digests, err := lru.New[string, uint64](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("core: digest cache: %w", err)
	}
	return &Service{machines: make(map[string]*entry), digests: digests, opts: o}, nil
}

// run wraps one service operation with tracing, timing and logging.
func (s *Service) run(ctx context.Context, op, id string, fn func(context.Context) error) error {
	ctx, span := s.opts.tracer.Start(ctx, op)
	start := s.opts.clock.Now()
	err := fn(ctx)
	s.opts.metrics.Observe(ctx, op, err == nil, s.opts.clock.Since(start))
	span.End(err)
	if err != nil {
		s.opts.logger.Error("machine operation failed", "operation", op, "machine", id, "error", err)
	} else {
		s.opts.logger.Debug("machine operation completed", "operation", op, "machine", id)
	}
	return err
}

// Register adds m to the registry.
func (s *Service) Register(ctx context.Context, m *machine.Machine) error {
	if m == nil {
		return errors.New("core: nil machine")
	}
	return s.run(ctx, "register", m.ID(), func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.machines[m.ID()]; ok {
			return fmt.Errorf("%w: %s", ErrExists, m.ID())
		}
		s.machines[m.ID()] = &entry{m: m}
		s.opts.metrics.SetMachines(len(s.machines))
		s.opts.logger.Info("machine registered", "machine", m.ID(), "kind", m.Kind())
		return nil
	})
}

// Unregister removes id from the registry. Persisted state is kept.
func (s *Service) Unregister(ctx context.Context, id string) error {
	return s.run(ctx, "unregister", id, func(context.Context) error {
		s.mu.Lock()
		e, ok := s.machines[id]
		if ok {
			delete(s.machines, id)
		}
		n := len(s.machines)
		s.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		// wait for in-flight operations on the machine
		e.mu.Lock()
		s.digests.Remove(id)
		e.mu.Unlock()
		s.opts.metrics.SetMachines(n)
		return nil
	})
}

// IDs returns the registered machine ids in ascending order.
func (s *Service) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.machines))
	for id := range s.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.machines[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// withMachine runs fn while holding the machine's lock.
func (s *Service) withMachine(id string, fn func(*machine.Machine) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.m)
}

// Tick runs fn against machine id inside a root transaction: the tick
// commits when fn returns nil and rolls back otherwise.
func (s *Service) Tick(ctx context.Context, id string, fn func(*machine.Machine, *transaction.Context) error) error {
	return s.run(ctx, "tick", id, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.withMachine(id, func(m *machine.Machine) error {
			return m.Tick(func(tx *transaction.Context) error { return fn(m, tx) })
		})
	})
}

// Transfer moves up to max of key from one machine to another in its own
// root transaction and returns the amount moved. Both machines are locked in
// id order.
func (s *Service) Transfer(ctx context.Context, key resource.Key, fromID string, fromFace ioconfig.Face, toID string, toFace ioconfig.Face, max resource.Amount) (resource.Amount, error) {
	var moved resource.Amount
	err := s.run(ctx, "transfer", fromID+"->"+toID, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fromID == toID {
			return fmt.Errorf("core: transfer from %s to itself", fromID)
		}
		from, err := s.lookup(fromID)
		if err != nil {
			return err
		}
		to, err := s.lookup(toID)
		if err != nil {
			return err
		}
		first, second := from, to
		if toID < fromID {
			first, second = to, from
		}
		first.mu.Lock()
		defer first.mu.Unlock()
		second.mu.Lock()
		defer second.mu.Unlock()
		return transaction.Run(nil, func(tx *transaction.Context) error {
			n, err := machine.Move(tx, key, from.m, fromFace, to.m, toFace, max)
			moved = n
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.opts.metrics.Moved(key.Category().String(), uint64(moved))
	}
	return moved, nil
}

// Configure sets the mode and filter of one face of machine id.
func (s *Service) Configure(ctx context.Context, id string, face ioconfig.Face, mode ioconfig.Mode, filter *resource.Filter) error {
	return s.run(ctx, "configure", id, func(context.Context) error {
		return s.withMachine(id, func(m *machine.Machine) error {
			return m.IO().Configure(face, mode, filter)
		})
	})
}

// View returns a snapshot of machine id for read paths such as UIs.
func (s *Service) View(ctx context.Context, id string) (machine.State, error) {
	var st machine.State
	err := s.run(ctx, "view", id, func(context.Context) error {
		return s.withMachine(id, func(m *machine.Machine) error {
			st = m.State()
			return nil
		})
	})
	return st, err
}

// Close releases the state store and the archiver.
func (s *Service) Close() error {
	var errs []error
	if s.opts.store != nil {
		errs = append(errs, s.opts.store.Close())
	}
	if s.opts.archiver != nil {
		errs = append(errs, s.opts.archiver.Close())
	}
	// stderr sinks report EINVAL on sync on some platforms.
	if l, ok := s.opts.logger.(interface{ Sync() error }); ok {
		_ = l.Sync()
	}
	return multierr.Combine(errs...)
}

// Metrics returns the metrics recorder in use.
func (s *Service) Metrics() MetricsRecorder { return s.opts.metrics }

// Archiver returns the configured archiver, or nil.
func (s *Service) Archiver() *archive.Archiver { return s.opts.archiver }

// Store returns the configured state store, or nil.
func (s *Service) Store() StateStore { return s.opts.store }
