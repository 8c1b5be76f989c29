// Package machine assembles slot groups, an optional energy buffer and a
// face configuration into a machine, and exposes face-routed transfers on it.
//
// A Machine is not safe for concurrent use; the host serialises ticks,
// transfers and configuration per machine.
package machine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"machinecore/pkg/ioconfig"
	"machinecore/pkg/resource"
	"machinecore/pkg/storage"
	"machinecore/pkg/transaction"
)

// GroupSpec declares one slot group.
type GroupSpec struct {
	Name     string
	Category resource.Category
	Policy   storage.Policy
	Slots    []storage.SlotConfig
}

// EnergySpec declares the energy buffer.
type EnergySpec struct {
	Capacity  resource.Amount
	MaxInput  resource.Amount
	MaxOutput resource.Amount
}

// Spec declares a machine. An empty ID is replaced by a random UUID.
type Spec struct {
	ID       string
	Kind     string
	Groups   []GroupSpec
	Energy   *EnergySpec
	Faces    map[ioconfig.Face]ioconfig.FaceConfig
	Redstone RedstoneMode
	// OnChange runs after a root transaction that changed storage commits.
	OnChange func(*Machine)
}

// Machine is the aggregate a host ticks and transfers against.
type Machine struct {
	id       string
	kind     string
	groups   []*storage.Group
	byName   map[string]*storage.Group
	energy   *storage.EnergyStorage
	io       *ioconfig.Config
	redstone RedstoneMode
	powered  bool
	status   Status
	security Security
	onChange func(*Machine)
}

// New builds a machine from spec.
func New(spec Spec) (*Machine, error) {
	if spec.Kind == "" {
		return nil, errors.New("machine: kind required")
	}
	if !spec.Redstone.Valid() {
		return nil, fmt.Errorf("machine: invalid redstone mode %d", spec.Redstone)
	}
	m := &Machine{
		id:       spec.ID,
		kind:     spec.Kind,
		byName:   make(map[string]*storage.Group, len(spec.Groups)),
		io:       ioconfig.New(),
		redstone: spec.Redstone,
		onChange: spec.OnChange,
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	listener := storage.WithListener(func(*storage.Group) {
		if m.onChange != nil {
			m.onChange(m)
		}
	})
	for _, gs := range spec.Groups {
		if gs.Name == "" {
			return nil, errors.New("machine: group name required")
		}
		if _, dup := m.byName[gs.Name]; dup {
			return nil, fmt.Errorf("machine: duplicate group %q", gs.Name)
		}
		if gs.Category == resource.CategoryEnergy {
			return nil, fmt.Errorf("machine: group %q: energy is held by the energy storage", gs.Name)
		}
		g, err := storage.NewGroup(gs.Name, gs.Category, gs.Slots, storage.WithPolicy(gs.Policy), listener)
		if err != nil {
			return nil, fmt.Errorf("machine: %w", err)
		}
		m.groups = append(m.groups, g)
		m.byName[gs.Name] = g
	}
	if spec.Energy != nil {
		m.energy = storage.NewEnergyStorage(spec.Energy.Capacity, spec.Energy.MaxInput, spec.Energy.MaxOutput, listener)
	}
	for face, fc := range spec.Faces {
		if err := m.io.ConfigureFace(face, fc); err != nil {
			return nil, fmt.Errorf("machine: %w", err)
		}
	}
	return m, nil
}

func (m *Machine) ID() string   { return m.id }
func (m *Machine) Kind() string { return m.kind }

// IO returns the face configuration.
func (m *Machine) IO() *ioconfig.Config { return m.io }

// Energy returns the energy buffer, or nil.
func (m *Machine) Energy() *storage.EnergyStorage { return m.energy }

// Group returns the named group, or nil.
func (m *Machine) Group(name string) *storage.Group { return m.byName[name] }

// Groups returns the groups in declaration order.
func (m *Machine) Groups() []*storage.Group {
	return append([]*storage.Group(nil), m.groups...)
}

// GroupsFor returns the groups whose category restriction admits category.
func (m *Machine) GroupsFor(category resource.Category) []*storage.Group {
	var out []*storage.Group
	for _, g := range m.groups {
		if g.Category().Accepts(category) {
			out = append(out, g)
		}
	}
	return out
}

// Revision changes whenever storage or configuration changes.
func (m *Machine) Revision() uint64 {
	rev := m.io.Revision()
	for _, g := range m.groups {
		rev += g.Revision()
	}
	if m.energy != nil {
		rev += m.energy.Group().Revision()
	}
	return rev
}

// Tick runs fn in a fresh root transaction: committed when fn returns nil,
// rolled back on error or panic.
func (m *Machine) Tick(fn func(ctx *transaction.Context) error) error {
	return transaction.Run(nil, fn)
}

// TickPowered records the redstone signal and runs Tick when the redstone
// mode allows it. It reports whether fn ran.
func (m *Machine) TickPowered(powered bool, fn func(ctx *transaction.Context) error) (bool, error) {
	m.powered = powered
	if !m.Active() {
		return false, nil
	}
	return true, m.Tick(fn)
}

// Powered reports the last recorded redstone signal.
func (m *Machine) Powered() bool { return m.powered }

// SetPowered records the redstone signal without ticking.
func (m *Machine) SetPowered(powered bool) { m.powered = powered }

// Active reports whether the redstone mode lets the machine run under the
// recorded signal.
func (m *Machine) Active() bool { return m.redstone.Active(m.powered) }

// Status returns the last reported status.
func (m *Machine) Status() Status { return m.status }

// SetStatus records the machine's status, typically from inside a tick.
func (m *Machine) SetStatus(s Status) error {
	if !s.Valid() {
		return fmt.Errorf("machine: invalid status %d", s)
	}
	m.status = s
	return nil
}

// Working reports whether the machine is enabled by redstone and its status
// counts as working.
func (m *Machine) Working() bool { return m.Active() && m.status.Active() }

// Redstone returns the redstone mode.
func (m *Machine) Redstone() RedstoneMode { return m.redstone }

// SetRedstone changes the redstone mode.
func (m *Machine) SetRedstone(mode RedstoneMode) error {
	if !mode.Valid() {
		return fmt.Errorf("machine: invalid redstone mode %d", mode)
	}
	m.redstone = mode
	return nil
}

// Security returns a copy of the security settings.
func (m *Machine) Security() Security { return m.security }

// Claim makes player the owner if the machine has none. It reports whether
// player owns the machine afterwards.
func (m *Machine) Claim(player uuid.UUID) bool { return m.security.TryClaim(player) }

// SetAccessLevel changes the access level. Only the owner may do so.
func (m *Machine) SetAccessLevel(player uuid.UUID, level AccessLevel) error {
	if !level.Valid() {
		return fmt.Errorf("machine: invalid access level %d", level)
	}
	if !m.security.IsOwner(player) {
		return ErrAccessDenied
	}
	m.security.Level = level
	return nil
}
