// Package memory provides an in-process snapshot store used by tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

type entry struct {
	payload   []byte
	updatedAt time.Time
}

// Store keeps machine snapshots in a map. Payloads are copied on the way in
// and out.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// Save upserts the payload for id.
func (s *Store) Save(ctx context.Context, id string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{payload: append([]byte(nil), payload...), updatedAt: s.now().UTC()}
	return nil
}

// Load returns the payload for id and whether it exists.
func (s *Store) Load(ctx context.Context, id string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.payload...), true, nil
}

// Delete removes id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// List returns every stored id in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// UpdatedAt reports when id was last saved.
func (s *Store) UpdatedAt(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.updatedAt, ok
}

// Close implements io.Closer.
func (s *Store) Close() error { return nil }
