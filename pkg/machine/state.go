package machine

import (
	"fmt"

	"machinecore/pkg/ioconfig"
	"machinecore/pkg/resource"
)

// SlotState is the persisted content of one slot. Capacity is informational
// and is not applied on restore.
type SlotState struct {
	Key      resource.Key    `json:"key"`
	Amount   resource.Amount `json:"amount"`
	Capacity resource.Amount `json:"capacity,omitempty"`
}

// GroupState is the persisted content of one group.
type GroupState struct {
	Name  string      `json:"name"`
	Slots []SlotState `json:"slots"`
}

// FaceState is the persisted policy of one face.
type FaceState struct {
	Face   ioconfig.Face       `json:"face"`
	Config ioconfig.FaceConfig `json:"config"`
}

// State is a plain snapshot of a machine, produced for persistence and
// display and applied by Restore.
type State struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	HasEnergy bool            `json:"has_energy"`
	Energy    resource.Amount `json:"energy"`
	Groups    []GroupState    `json:"groups"`
	Faces     []FaceState     `json:"faces"`
	Redstone  RedstoneMode    `json:"redstone"`
	Powered   bool            `json:"powered"`
	Status    Status          `json:"status"`
	Security  Security        `json:"security"`
}

// State captures the machine. Disabled faces are omitted.
func (m *Machine) State() State {
	st := State{
		ID:       m.id,
		Kind:     m.kind,
		Groups:   make([]GroupState, 0, len(m.groups)),
		Redstone: m.redstone,
		Powered:  m.powered,
		Status:   m.status,
		Security: m.security,
	}
	if m.energy != nil {
		st.HasEnergy = true
		st.Energy = m.energy.Stored()
	}
	for _, g := range m.groups {
		gs := GroupState{Name: g.Name(), Slots: make([]SlotState, g.Size())}
		for i := range gs.Slots {
			s := g.Slot(i)
			gs.Slots[i] = SlotState{Key: s.Key(), Amount: s.Amount(), Capacity: s.Capacity()}
		}
		st.Groups = append(st.Groups, gs)
	}
	for face, fc := range m.io.Snapshot() {
		if fc == (ioconfig.FaceConfig{}) {
			continue
		}
		st.Faces = append(st.Faces, FaceState{Face: ioconfig.Face(face), Config: fc})
	}
	return st
}

// Restore replaces the machine's contents with st. Groups unknown to the
// machine and surplus slots are ignored; slots, faces and settings absent
// from st fall back to their defaults. Restore validates everything before
// applying anything.
func (m *Machine) Restore(st State) error {
	if st.ID != "" && st.ID != m.id {
		return fmt.Errorf("machine: state for %q cannot restore %q", st.ID, m.id)
	}
	if !st.Redstone.Valid() {
		return fmt.Errorf("machine: invalid redstone mode %d", st.Redstone)
	}
	if !st.Status.Valid() {
		return fmt.Errorf("machine: invalid status %d", st.Status)
	}
	if !st.Security.Level.Valid() {
		return fmt.Errorf("machine: invalid access level %d", st.Security.Level)
	}
	if st.HasEnergy && m.energy != nil && st.Energy > m.energy.Capacity() {
		return fmt.Errorf("machine: energy %d exceeds capacity %d", st.Energy, m.energy.Capacity())
	}
	for _, gs := range st.Groups {
		g := m.byName[gs.Name]
		if g == nil {
			continue
		}
		for i, ss := range gs.Slots {
			s := g.Slot(i)
			if s == nil {
				break
			}
			if ss.Amount == 0 {
				continue
			}
			if ss.Key.IsBlank() {
				return fmt.Errorf("machine: group %q slot %d: amount without key", gs.Name, i)
			}
			if ss.Amount > s.Capacity() {
				return fmt.Errorf("machine: group %q slot %d: amount %d exceeds capacity %d", gs.Name, i, ss.Amount, s.Capacity())
			}
			if !s.Accepts(ss.Key) {
				return fmt.Errorf("machine: group %q slot %d: %s not accepted", gs.Name, i, ss.Key)
			}
		}
	}
	faces := ioconfig.New()
	for _, fs := range st.Faces {
		if err := faces.ConfigureFace(fs.Face, fs.Config); err != nil {
			return fmt.Errorf("machine: %w", err)
		}
	}

	for _, g := range m.groups {
		for i := 0; i < g.Size(); i++ {
			g.Slot(i).Clear()
		}
	}
	for _, gs := range st.Groups {
		g := m.byName[gs.Name]
		if g == nil {
			continue
		}
		for i, ss := range gs.Slots {
			s := g.Slot(i)
			if s == nil {
				break
			}
			if err := s.Set(ss.Key, ss.Amount); err != nil {
				return fmt.Errorf("machine: %w", err)
			}
		}
	}
	if m.energy != nil {
		amount := resource.Zero
		if st.HasEnergy {
			amount = st.Energy
		}
		if err := m.energy.Set(amount); err != nil {
			return fmt.Errorf("machine: %w", err)
		}
	}
	m.io.Reset()
	for _, fs := range st.Faces {
		// validated above
		_ = m.io.ConfigureFace(fs.Face, fs.Config)
	}
	m.redstone = st.Redstone
	m.powered = st.Powered
	m.status = st.Status
	m.security = st.Security
	return nil
}
