package storage

import (
	"machinecore/pkg/resource"
	"machinecore/pkg/transaction"
)

// EnergyStorage is a single-slot energy buffer with per-call external rate
// limits. Internal machine logic bypasses the limits.
type EnergyStorage struct {
	group     *Group
	maxInput  resource.Amount
	maxOutput resource.Amount
}

// NewEnergyStorage returns an empty buffer.
func NewEnergyStorage(capacity, maxInput, maxOutput resource.Amount, opts ...GroupOption) *EnergyStorage {
	// An energy-only group with a valid default policy cannot fail to build.
	g, _ := NewGroup("energy", resource.CategoryEnergy, []SlotConfig{{Capacity: capacity, Access: AccessStorage}}, opts...)
	return &EnergyStorage{group: g, maxInput: maxInput, maxOutput: maxOutput}
}

func (e *EnergyStorage) Group() *Group              { return e.group }
func (e *EnergyStorage) Slot() *Slot                { return e.group.slots[0] }
func (e *EnergyStorage) Capacity() resource.Amount  { return e.Slot().capacity }
func (e *EnergyStorage) Stored() resource.Amount    { return e.Slot().amount }
func (e *EnergyStorage) MaxInput() resource.Amount  { return e.maxInput }
func (e *EnergyStorage) MaxOutput() resource.Amount { return e.maxOutput }

// CanExternalInsert reports whether the buffer accepts energy from outside.
func (e *EnergyStorage) CanExternalInsert() bool { return e.maxInput > 0 }

// CanExternalExtract reports whether the buffer supplies energy to outside.
func (e *EnergyStorage) CanExternalExtract() bool { return e.maxOutput > 0 }

// Insert stores up to amount and returns what was accepted.
func (e *EnergyStorage) Insert(ctx *transaction.Context, amount resource.Amount) (resource.Amount, error) {
	return e.Slot().Insert(ctx, resource.Energy(), amount)
}

// Extract draws up to amount and returns what was drawn.
func (e *EnergyStorage) Extract(ctx *transaction.Context, amount resource.Amount) (resource.Amount, error) {
	return e.Slot().Extract(ctx, resource.Energy(), amount)
}

// InsertExternal is Insert capped at maxInput.
func (e *EnergyStorage) InsertExternal(ctx *transaction.Context, amount resource.Amount) (resource.Amount, error) {
	return e.Insert(ctx, amount.Min(e.maxInput))
}

// ExtractExternal is Extract capped at maxOutput.
func (e *EnergyStorage) ExtractExternal(ctx *transaction.Context, amount resource.Amount) (resource.Amount, error) {
	return e.Extract(ctx, amount.Min(e.maxOutput))
}

// InsertExact stores exactly amount or nothing.
func (e *EnergyStorage) InsertExact(ctx *transaction.Context, amount resource.Amount) error {
	return e.group.InsertExact(ctx, resource.Energy(), amount)
}

// ExtractExact draws exactly amount or nothing. Machines use it to pay for a
// processing step.
func (e *EnergyStorage) ExtractExact(ctx *transaction.Context, amount resource.Amount) error {
	return e.group.ExtractExact(ctx, resource.Energy(), amount)
}

// Set overwrites the stored amount outside of a transaction.
func (e *EnergyStorage) Set(amount resource.Amount) error {
	return e.Slot().Set(resource.Energy(), amount)
}
