package transaction

import "machinecore/pkg/resource"

// Kind names the mutation a Record undoes.
type Kind uint8

const (
	KindInsert Kind = iota + 1
	KindExtract
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindExtract:
		return "extract"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// Participant is anything that journals mutations into a Context.
type Participant interface {
	// Revert restores the state captured in rec.
	Revert(rec Record)
}

// Record is one journal entry: the prior state of a participant and the delta
// applied on top of it.
type Record struct {
	Participant Participant
	Kind        Kind
	Key         resource.Key
	Amount      resource.Amount
	Revision    uint64
	Delta       resource.Amount
}
