package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"machinecore/internal/archive"
	"machinecore/internal/codec"
	"machinecore/pkg/machine"
)

// StateStore persists encoded machine snapshots keyed by machine id.
type StateStore interface {
	Save(ctx context.Context, id string, payload []byte) error
	// Load reports false when id has no stored payload.
	Load(ctx context.Context, id string) ([]byte, bool, error)
	Delete(ctx context.Context, id string) error
	// List returns the stored ids in ascending order.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Save encodes machine id and writes it to the state store. Writes are
// skipped when the payload matches the last one saved or loaded; the result
// reports whether a write happened.
func (s *Service) Save(ctx context.Context, id string) (bool, error) {
	var written bool
	err := s.run(ctx, "save", id, func(ctx context.Context) error {
		if s.opts.store == nil {
			return ErrNoStore
		}
		return s.withMachine(id, func(m *machine.Machine) error {
			payload, err := codec.Marshal(m.State())
			if err != nil {
				return fmt.Errorf("encode %s: %w", id, err)
			}
			digest := xxhash.Sum64(payload)
			if last, ok := s.digests.Get(id); ok && last == digest {
				return nil
			}
			if err := s.opts.store.Save(ctx, id, payload); err != nil {
				return err
			}
			s.digests.Add(id, digest)
			written = true
			return nil
		})
	})
	return written, err
}

// SaveAll saves every registered machine with bounded concurrency and
// returns how many payloads were written.
func (s *Service) SaveAll(ctx context.Context) (int, error) {
	if s.opts.store == nil {
		return 0, ErrNoStore
	}
	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.saveConcurrency)
	for _, id := range s.IDs() {
		g.Go(func() error {
			ok, err := s.Save(gctx, id)
			if ok {
				written.Add(1)
			}
			return err
		})
	}
	err := g.Wait()
	n := int(written.Load())
	s.opts.logger.Info("machines saved", "written", n, "registered", len(s.IDs()))
	return n, err
}

// Load restores machine id from the state store. It reports false and leaves
// the machine untouched when nothing is stored for id.
func (s *Service) Load(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.run(ctx, "load", id, func(ctx context.Context) error {
		if s.opts.store == nil {
			return ErrNoStore
		}
		return s.withMachine(id, func(m *machine.Machine) error {
			payload, ok, err := s.opts.store.Load(ctx, id)
			if err != nil || !ok {
				return err
			}
			if err := s.restore(m, payload); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	return found, err
}

// Purge deletes the persisted state of id. The machine need not be
// registered.
func (s *Service) Purge(ctx context.Context, id string) error {
	return s.run(ctx, "purge", id, func(ctx context.Context) error {
		if s.opts.store == nil {
			return ErrNoStore
		}
		s.digests.Remove(id)
		return s.opts.store.Delete(ctx, id)
	})
}

func (s *Service) restore(m *machine.Machine, payload []byte) error {
	st, err := codec.Unmarshal(payload)
	if err != nil {
		return fmt.Errorf("decode %s: %w", m.ID(), err)
	}
	if err := m.Restore(st); err != nil {
		return err
	}
	s.digests.Add(m.ID(), xxhash.Sum64(payload))
	return nil
}

// Archive writes a compressed snapshot of machine id to the archive.
func (s *Service) Archive(ctx context.Context, id string) (archive.Info, error) {
	var info archive.Info
	err := s.run(ctx, "archive", id, func(ctx context.Context) error {
		if s.opts.archiver == nil {
			return ErrNoArchive
		}
		return s.withMachine(id, func(m *machine.Machine) error {
			payload, err := codec.Marshal(m.State())
			if err != nil {
				return fmt.Errorf("encode %s: %w", id, err)
			}
			info, err = s.opts.archiver.Put(ctx, id, payload)
			return err
		})
	})
	return info, err
}

// RestoreArchive restores machine id from its newest archived snapshot and
// returns the snapshot's key.
func (s *Service) RestoreArchive(ctx context.Context, id string) (string, error) {
	var key string
	err := s.run(ctx, "restore_archive", id, func(ctx context.Context) error {
		if s.opts.archiver == nil {
			return ErrNoArchive
		}
		return s.withMachine(id, func(m *machine.Machine) error {
			info, payload, err := s.opts.archiver.Latest(ctx, id)
			if err != nil {
				return err
			}
			st, err := codec.Unmarshal(payload)
			if err != nil {
				return fmt.Errorf("decode %s: %w", info.Key, err)
			}
			if err := m.Restore(st); err != nil {
				return err
			}
			// the store no longer matches the machine
			s.digests.Remove(id)
			key = info.Key
			return nil
		})
	})
	return key, err
}
