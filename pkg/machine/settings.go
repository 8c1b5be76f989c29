package machine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAccessDenied is returned when a player lacks the rights for an action.
var ErrAccessDenied = errors.New("machine: access denied")

// RedstoneMode gates a machine's tick on its redstone signal.
type RedstoneMode uint8

const (
	RedstoneIgnore RedstoneMode = iota
	RedstoneLow
	RedstoneHigh
)

func (r RedstoneMode) Valid() bool { return r <= RedstoneHigh }

// Active reports whether the machine runs given the signal state.
func (r RedstoneMode) Active(powered bool) bool {
	switch r {
	case RedstoneLow:
		return !powered
	case RedstoneHigh:
		return powered
	default:
		return true
	}
}

func (r RedstoneMode) String() string {
	switch r {
	case RedstoneIgnore:
		return "ignore"
	case RedstoneLow:
		return "low"
	case RedstoneHigh:
		return "high"
	default:
		return fmt.Sprintf("redstone(%d)", uint8(r))
	}
}

// Status is the host-reported working state of a machine. The zero value
// means no status has been reported.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusWorking
	StatusPartiallyWorking
	StatusMissingResource
	StatusMissingFluids
	StatusMissingEnergy
	StatusMissingItems
	StatusOutputFull
	StatusOther
)

func (s Status) Valid() bool { return s <= StatusOther }

// Active reports whether the status counts as working.
func (s Status) Active() bool { return s == StatusWorking || s == StatusPartiallyWorking }

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusWorking:
		return "working"
	case StatusPartiallyWorking:
		return "partially_working"
	case StatusMissingResource:
		return "missing_resource"
	case StatusMissingFluids:
		return "missing_fluids"
	case StatusMissingEnergy:
		return "missing_energy"
	case StatusMissingItems:
		return "missing_items"
	case StatusOutputFull:
		return "output_full"
	case StatusOther:
		return "other"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// AccessLevel controls who may interact with a machine.
type AccessLevel uint8

const (
	AccessPublic AccessLevel = iota
	// AccessTeam currently grants the owner only.
	AccessTeam
	AccessPrivate
)

func (a AccessLevel) Valid() bool { return a <= AccessPrivate }

func (a AccessLevel) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessTeam:
		return "team"
	case AccessPrivate:
		return "private"
	default:
		return fmt.Sprintf("access(%d)", uint8(a))
	}
}

// Security holds ownership and access settings. The zero value is unowned
// and public.
type Security struct {
	Owner uuid.UUID
	Level AccessLevel
}

// HasOwner reports whether the machine has been claimed.
func (s Security) HasOwner() bool { return s.Owner != uuid.Nil }

// IsOwner reports whether player owns the machine.
func (s Security) IsOwner(player uuid.UUID) bool {
	return s.HasOwner() && s.Owner == player
}

// HasAccess reports whether player may interact with the machine.
func (s Security) HasAccess(player uuid.UUID) bool {
	if s.Level == AccessPublic || !s.HasOwner() {
		return true
	}
	return s.Owner == player
}

// TryClaim sets the owner when unset. It reports whether player is the owner
// afterwards.
func (s *Security) TryClaim(player uuid.UUID) bool {
	if player == uuid.Nil {
		return false
	}
	if !s.HasOwner() {
		s.Owner = player
	}
	return s.Owner == player
}
