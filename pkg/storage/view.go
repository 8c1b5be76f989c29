package storage

import "machinecore/pkg/resource"

// SlotView is a read-only copy of a slot for display.
type SlotView struct {
	Index    int
	Key      resource.Key
	Amount   resource.Amount
	Capacity resource.Amount
	Access   TransferType
}

// GroupView is a read-only copy of a group for display.
type GroupView struct {
	Name     string
	Category resource.Category
	Policy   Policy
	Revision uint64
	Slots    []SlotView
}

// View snapshots the slot.
func (s *Slot) View() SlotView {
	return SlotView{
		Index:    s.index,
		Key:      s.key,
		Amount:   s.amount,
		Capacity: s.capacity,
		Access:   s.access,
	}
}

// View snapshots the group.
func (g *Group) View() GroupView {
	v := GroupView{
		Name:     g.name,
		Category: g.category,
		Policy:   g.policy,
		Revision: g.Revision(),
		Slots:    make([]SlotView, len(g.slots)),
	}
	for i, s := range g.slots {
		v.Slots[i] = s.View()
	}
	return v
}
