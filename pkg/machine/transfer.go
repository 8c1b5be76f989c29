package machine

import (
	"fmt"

	"machinecore/pkg/ioconfig"
	"machinecore/pkg/resource"
	"machinecore/pkg/storage"
	"machinecore/pkg/transaction"
)

// Insert offers amount of key through face and returns what the machine
// accepted. Nothing is accepted when the face does not permit input of key.
func (m *Machine) Insert(ctx *transaction.Context, face ioconfig.Face, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	if amount == 0 || !m.io.CanAccept(face, key, ioconfig.FlowInput) {
		return 0, nil
	}
	if key.Category() == resource.CategoryEnergy {
		if m.energy == nil {
			return 0, nil
		}
		return m.energy.InsertExternal(ctx, amount)
	}
	var accepted resource.Amount
	for _, g := range m.GroupsFor(key.Category()) {
		if accepted == amount {
			break
		}
		n, err := g.InsertExternal(ctx, key, amount-accepted)
		accepted += n
		if err != nil {
			return accepted, err
		}
	}
	return accepted, nil
}

// Extract draws up to amount of key through face and returns what was
// drawn.
func (m *Machine) Extract(ctx *transaction.Context, face ioconfig.Face, key resource.Key, amount resource.Amount) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	if amount == 0 || !m.io.CanAccept(face, key, ioconfig.FlowOutput) {
		return 0, nil
	}
	if key.Category() == resource.CategoryEnergy {
		if m.energy == nil {
			return 0, nil
		}
		return m.energy.ExtractExternal(ctx, amount)
	}
	var removed resource.Amount
	for _, g := range m.GroupsFor(key.Category()) {
		if removed == amount {
			break
		}
		n, err := g.ExtractExternal(ctx, key, amount-removed)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Move transfers up to max of key from one machine to another through the
// given faces and returns the amount moved. The transfer runs in a nested
// context of ctx: the acceptable amount is probed first and rolled back,
// then exactly that amount is moved. When nothing can move both machines are
// left untouched.
func Move(ctx *transaction.Context, key resource.Key, from *Machine, fromFace ioconfig.Face, to *Machine, toFace ioconfig.Face, max resource.Amount) (resource.Amount, error) {
	if err := transaction.EnsureOpen(ctx); err != nil {
		return 0, err
	}
	if max == 0 || key.IsBlank() {
		return 0, nil
	}
	probe, err := transaction.Open(ctx)
	if err != nil {
		return 0, err
	}
	offered, err := from.Extract(probe, fromFace, key, max)
	if err != nil {
		probe.Close()
		return 0, err
	}
	accepted, err := to.Insert(probe, toFace, key, offered)
	probe.Close()
	if err != nil || accepted == 0 {
		return 0, err
	}

	err = transaction.Run(ctx, func(tx *transaction.Context) error {
		out, err := from.Extract(tx, fromFace, key, accepted)
		if err != nil {
			return err
		}
		in, err := to.Insert(tx, toFace, key, out)
		if err != nil {
			return err
		}
		if out != accepted || in != accepted {
			return fmt.Errorf("%w: moved %d of %d %s from %s to %s", storage.ErrShortfall, in, accepted, key, from.id, to.id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return accepted, nil
}
