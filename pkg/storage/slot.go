// Package storage implements bounded resource slots, ordered slot groups with
// distribution policies, and the energy buffer built on top of them. Every
// mutation is eager and journaled into a transaction.Context.
package storage

import (
	"fmt"

	"machinecore/pkg/resource"
	"machinecore/pkg/transaction"
)

// TransferType is a slot's policy towards external (face-routed) transfers.
// Internal machine logic is not restricted by it.
type TransferType uint8

const (
	// AccessStorage allows external insertion and extraction.
	AccessStorage TransferType = iota
	// AccessInput allows external insertion only.
	AccessInput
	// AccessOutput allows external extraction only.
	AccessOutput
	// AccessTransfer denies all external access (charge/drain slots).
	AccessTransfer
	// AccessProcessing allows both directions for processing buffers.
	AccessProcessing
)

// ExternalInsert reports whether external insertion is permitted.
func (t TransferType) ExternalInsert() bool {
	return t == AccessStorage || t == AccessInput || t == AccessProcessing
}

// ExternalExtract reports whether external extraction is permitted.
func (t TransferType) ExternalExtract() bool {
	return t == AccessStorage || t == AccessOutput || t == AccessProcessing
}

func (t TransferType) String() string {
	switch t {
	case AccessStorage:
		return "storage"
	case AccessInput:
		return "input"
	case AccessOutput:
		return "output"
	case AccessTransfer:
		return "transfer"
	case AccessProcessing:
		return "processing"
	default:
		return fmt.Sprintf("transfer_type(%d)", uint8(t))
	}
}

// SlotConfig describes a slot at construction time.
type SlotConfig struct {
	Capacity resource.Amount
	Access   TransferType
	Filter   *resource.Filter
}

// Slot is a single bounded container holding at most one resource key.
// Invariants: amount <= capacity, and the key is blank iff amount is zero.
type Slot struct {
	index    int
	capacity resource.Amount
	category resource.Category
	access   TransferType
	filter   *resource.Filter

	key      resource.Key
	amount   resource.Amount
	revision uint64

	group *Group
}

// NewSlot returns a standalone slot accepting any category.
func NewSlot(cfg SlotConfig) *Slot {
	return &Slot{
		capacity: cfg.Capacity,
		category: resource.CategoryAny,
		access:   cfg.Access,
		filter:   cfg.Filter.Clone(),
	}
}

func (s *Slot) Index() int                  { return s.index }
func (s *Slot) Capacity() resource.Amount   { return s.capacity }
func (s *Slot) Key() resource.Key           { return s.key }
func (s *Slot) Amount() resource.Amount     { return s.amount }
func (s *Slot) Access() TransferType        { return s.access }
func (s *Slot) Filter() *resource.Filter    { return s.filter.Clone() }
func (s *Slot) Category() resource.Category { return s.category }
func (s *Slot) Revision() uint64            { return s.revision }
func (s *Slot) IsEmpty() bool               { return s.amount == 0 }
func (s *Slot) IsFull() bool                { return s.amount == s.capacity }

// Accepts reports whether the slot could ever hold key, ignoring its
// current contents.
func (s *Slot) Accepts(key resource.Key) bool {
	return !key.IsBlank() && s.category.Accepts(key.Category()) && s.filter.Match(key)
}

// Room returns how much of key the slot can still take.
func (s *Slot) Room(key resource.Key) resource.Amount {
	if !s.Accepts(key) {
		return 0
	}
	if !s.key.IsBlank() && s.key != key {
		return 0
	}
	return s.capacity - s.amount
}

// Insert offers amount of key to the slot and returns the quantity accepted.
// An occupied slot only takes more of the key it already holds.
func (s *Slot) Insert(ctx *transaction.Context, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	accepted := amount.Min(s.Room(key))
	if accepted == 0 {
		return 0, nil
	}
	s.journal(ctx, transaction.KindInsert, accepted)
	s.key = key
	s.amount += accepted
	return accepted, nil
}

// Extract removes up to max of key and returns the quantity removed. The slot
// is cleared when it empties.
func (s *Slot) Extract(ctx *transaction.Context, key resource.Key, max resource.Amount) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	if key.IsBlank() || s.key != key {
		return 0, nil
	}
	return s.extract(ctx, max), nil
}

// ExtractAny removes up to max of whatever the slot holds.
func (s *Slot) ExtractAny(ctx *transaction.Context, max resource.Amount) (resource.Key, resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return resource.Key{}, 0, err
	}
	key := s.key
	if key.IsBlank() {
		return resource.Key{}, 0, nil
	}
	return key, s.extract(ctx, max), nil
}

func (s *Slot) extract(ctx *transaction.Context, max resource.Amount) resource.Amount {
	removed := max.Min(s.amount)
	if removed == 0 {
		return 0
	}
	s.journal(ctx, transaction.KindExtract, removed)
	s.amount -= removed
	if s.amount == 0 {
		s.key = resource.Key{}
	}
	return removed
}

// Peek returns the amount of key held, without a context.
func (s *Slot) Peek(key resource.Key) resource.Amount {
	if key.IsBlank() || s.key != key {
		return 0
	}
	return s.amount
}

// Set overwrites the slot contents outside of any transaction. It is the
// restore path for persisted state and validates the slot invariants.
func (s *Slot) Set(key resource.Key, amount resource.Amount) error {
	if amount == 0 {
		s.Clear()
		return nil
	}
	if key.IsBlank() {
		return fmt.Errorf("storage: slot %d: blank key with amount %d", s.index, amount)
	}
	if amount > s.capacity {
		return fmt.Errorf("storage: slot %d: amount %d exceeds capacity %d", s.index, amount, s.capacity)
	}
	if !s.category.Accepts(key.Category()) {
		return fmt.Errorf("storage: slot %d: category %s not accepted", s.index, key.Category())
	}
	s.key = key
	s.amount = amount
	s.revision++
	return nil
}

// Clear empties the slot outside of any transaction.
func (s *Slot) Clear() {
	if s.amount == 0 && s.key.IsBlank() {
		return
	}
	s.key = resource.Key{}
	s.amount = 0
	s.revision++
}

// Revert implements transaction.Participant.
func (s *Slot) Revert(rec transaction.Record) {
	s.key = rec.Key
	s.amount = rec.Amount
	s.revision = rec.Revision
}

// journal records the prior state. The caller has already checked the
// context, so Record cannot fail here.
func (s *Slot) journal(ctx *transaction.Context, kind transaction.Kind, delta resource.Amount) {
	_ = ctx.Record(transaction.Record{
		Participant: s,
		Kind:        kind,
		Key:         s.key,
		Amount:      s.amount,
		Revision:    s.revision,
		Delta:       delta,
	})
	s.revision++
	if s.group != nil {
		s.group.touch(ctx)
	}
}
