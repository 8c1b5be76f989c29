package ioconfig

import (
	"fmt"
	"strings"
)

// Flow is the direction of a proposed transfer relative to the machine.
type Flow uint8

const (
	// FlowInput moves resource into the machine.
	FlowInput Flow = 1
	// FlowOutput moves resource out of the machine.
	FlowOutput Flow = 2
)

func (f Flow) String() string {
	switch f {
	case FlowInput:
		return "input"
	case FlowOutput:
		return "output"
	default:
		return fmt.Sprintf("flow(%d)", uint8(f))
	}
}

// Mode is the set of flows a face permits.
type Mode uint8

const (
	Disabled Mode = 0
	Input    Mode = Mode(FlowInput)
	Output   Mode = Mode(FlowOutput)
	Both     Mode = Input | Output
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m <= Both }

// Allows reports whether the mode permits flow.
func (m Mode) Allows(flow Flow) bool {
	return (flow == FlowInput || flow == FlowOutput) && m&Mode(flow) != 0
}

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Input:
		return "input"
	case Output:
		return "output"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "":
		return Disabled, nil
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	case "both":
		return Both, nil
	default:
		return Disabled, fmt.Errorf("ioconfig: unknown mode %q", s)
	}
}
