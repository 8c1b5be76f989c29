package storage

import (
	"errors"
	"fmt"
	"weak"

	"machinecore/pkg/resource"
	"machinecore/pkg/transaction"
)

// ErrShortfall is returned by the exact operations when the full amount
// could not be moved. Nothing is left behind in that case.
var ErrShortfall = errors.New("storage: shortfall")

// Group is an ordered set of slots acting as one logical storage. The
// distribution policy is fixed at construction.
//
// The change listener fires when a root transaction closes committed. A root
// that is dropped without Commit, Rollback or Close never fires it; its
// bookkeeping is released once the root is garbage collected.
type Group struct {
	name     string
	category resource.Category
	policy   Policy
	slots    []*Slot

	listener func(*Group)
	pending  map[weak.Pointer[transaction.Context]]uint64
}

// GroupOption customises a Group.
type GroupOption func(*Group)

// WithPolicy sets the insertion distribution policy.
func WithPolicy(p Policy) GroupOption {
	return func(g *Group) { g.policy = p }
}

// WithListener registers fn to run after a root transaction that changed the
// group commits.
func WithListener(fn func(*Group)) GroupOption {
	return func(g *Group) { g.listener = fn }
}

// NewGroup builds a group of slots restricted to category.
func NewGroup(name string, category resource.Category, slots []SlotConfig, opts ...GroupOption) (*Group, error) {
	if category == resource.CategoryNone {
		return nil, fmt.Errorf("storage: group %q: category restriction admits nothing", name)
	}
	g := &Group{
		name:     name,
		category: category,
		policy:   FillFirst,
		slots:    make([]*Slot, 0, len(slots)),
		pending:  make(map[weak.Pointer[transaction.Context]]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}
	if !g.policy.Valid() {
		return nil, fmt.Errorf("storage: group %q: unknown policy %d", name, g.policy)
	}
	for i, cfg := range slots {
		s := NewSlot(cfg)
		s.index = i
		s.category = category
		s.group = g
		g.slots = append(g.slots, s)
	}
	return g, nil
}

func (g *Group) Name() string                { return g.name }
func (g *Group) Category() resource.Category { return g.category }
func (g *Group) Policy() Policy              { return g.policy }
func (g *Group) Size() int                   { return len(g.slots) }

// Slot returns the i-th slot, or nil when out of range.
func (g *Group) Slot(i int) *Slot {
	if i < 0 || i >= len(g.slots) {
		return nil
	}
	return g.slots[i]
}

// Capacity returns the summed slot capacity, saturating at MaxAmount.
func (g *Group) Capacity() resource.Amount {
	var total resource.Amount
	for _, s := range g.slots {
		total = total.SaturatingAdd(s.capacity)
	}
	return total
}

// Revision changes whenever any slot changes and is restored by rollback.
func (g *Group) Revision() uint64 {
	var rev uint64
	for _, s := range g.slots {
		rev += s.revision
	}
	return rev
}

// TotalOf sums the amount of key held across all slots.
func (g *Group) TotalOf(key resource.Key) resource.Amount {
	var total resource.Amount
	for _, s := range g.slots {
		total = total.SaturatingAdd(s.Peek(key))
	}
	return total
}

// IsEmpty reports whether every slot is empty.
func (g *Group) IsEmpty() bool {
	for _, s := range g.slots {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

// Keys lists the distinct keys held, in slot order.
func (g *Group) Keys() []resource.Key {
	var out []resource.Key
	seen := make(map[resource.Key]struct{})
	for _, s := range g.slots {
		if s.key.IsBlank() {
			continue
		}
		if _, ok := seen[s.key]; ok {
			continue
		}
		seen[s.key] = struct{}{}
		out = append(out, s.key)
	}
	return out
}

func anySlot(*Slot) bool { return true }

func externalInsert(s *Slot) bool { return s.access.ExternalInsert() }

func externalExtract(s *Slot) bool { return s.access.ExternalExtract() }

// InsertInto distributes amount of key over the slots according to the
// group's policy and returns the total accepted. Partial acceptance is not an
// error.
func (g *Group) InsertInto(ctx *transaction.Context, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	return g.insert(ctx, key, amount, anySlot)
}

// InsertExternal is InsertInto restricted to slots whose TransferType allows
// external insertion.
func (g *Group) InsertExternal(ctx *transaction.Context, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	return g.insert(ctx, key, amount, externalInsert)
}

// ExtractFrom removes up to amount of key, iterating slots in order.
func (g *Group) ExtractFrom(ctx *transaction.Context, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	return g.extract(ctx, key, amount, anySlot)
}

// ExtractExternal is ExtractFrom restricted to slots whose TransferType
// allows external extraction.
func (g *Group) ExtractExternal(ctx *transaction.Context, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	return g.extract(ctx, key, amount, externalExtract)
}

// InsertExact inserts all of amount or nothing. On shortfall the partial
// insertion is rolled back and ErrShortfall is returned.
func (g *Group) InsertExact(ctx *transaction.Context, key resource.Key, amount resource.Amount) error {
	return transaction.Run(ctx, func(tx *transaction.Context) error {
		moved, err := g.InsertInto(tx, key, amount)
		if err != nil {
			return err
		}
		if moved != amount {
			return fmt.Errorf("%w: inserted %d of %d %s into %s", ErrShortfall, moved, amount, key, g.name)
		}
		return nil
	})
}

// ExtractExact extracts all of amount or nothing.
func (g *Group) ExtractExact(ctx *transaction.Context, key resource.Key, amount resource.Amount) error {
	return transaction.Run(ctx, func(tx *transaction.Context) error {
		moved, err := g.ExtractFrom(tx, key, amount)
		if err != nil {
			return err
		}
		if moved != amount {
			return fmt.Errorf("%w: extracted %d of %d %s from %s", ErrShortfall, moved, amount, key, g.name)
		}
		return nil
	})
}

func (g *Group) insert(ctx *transaction.Context, key resource.Key, amount resource.Amount, eligible func(*Slot) bool) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	if amount == 0 || key.IsBlank() || !g.category.Accepts(key.Category()) {
		return 0, nil
	}
	switch g.policy {
	case RoundRobin:
		return g.insertRoundRobin(ctx, key, amount, eligible)
	case Weighted:
		return g.insertWeighted(ctx, key, amount, eligible)
	case MatchingFirst:
		return g.insertMatchingFirst(ctx, key, amount, eligible)
	default:
		return g.insertFillFirst(ctx, key, amount, eligible)
	}
}

func (g *Group) extract(ctx *transaction.Context, key resource.Key, amount resource.Amount, eligible func(*Slot) bool) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	var removed resource.Amount
	for _, s := range g.slots {
		if removed == amount {
			break
		}
		if !eligible(s) {
			continue
		}
		n, err := s.Extract(ctx, key, amount-removed)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// touch arranges for the listener to fire once when the root transaction
// commits with a changed revision.
func (g *Group) touch(ctx *transaction.Context) {
	if g.listener == nil {
		return
	}
	root := ctx.Root()
	key := weak.Make(root)
	if _, ok := g.pending[key]; ok {
		return
	}
	// drop entries of abandoned roots that have been collected
	for wp := range g.pending {
		if wp.Value() == nil {
			delete(g.pending, wp)
		}
	}
	// The slot has already bumped its revision; the baseline is the
	// revision before this first mutation.
	g.pending[key] = g.Revision() - 1
	_ = root.OnClose(func(_ *transaction.Context, r transaction.Result) {
		before := g.pending[key]
		delete(g.pending, key)
		if r.WasCommitted() && g.Revision() != before {
			g.listener(g)
		}
	})
}
