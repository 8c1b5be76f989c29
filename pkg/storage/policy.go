package storage

import (
	"fmt"
	"strings"

	"machinecore/pkg/resource"
	"machinecore/pkg/transaction"
)

// Policy selects how a group spreads an insertion over its slots.
type Policy uint8

const (
	// FillFirst fills slots in declared order.
	FillFirst Policy = iota
	// RoundRobin splits the amount evenly over slots with room, handing the
	// remainder to the earliest slots, and repeats until nothing moves.
	RoundRobin
	// Weighted splits the amount proportionally to slot capacity, then
	// fills leftovers in order.
	Weighted
	// MatchingFirst tops up slots already holding the key before touching
	// empty ones.
	MatchingFirst
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool { return p <= MatchingFirst }

func (p Policy) String() string {
	switch p {
	case FillFirst:
		return "fill_first"
	case RoundRobin:
		return "round_robin"
	case Weighted:
		return "weighted"
	case MatchingFirst:
		return "matching_first"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fill_first":
		return FillFirst, nil
	case "round_robin":
		return RoundRobin, nil
	case "weighted":
		return Weighted, nil
	case "matching_first":
		return MatchingFirst, nil
	default:
		return FillFirst, fmt.Errorf("storage: unknown policy %q", s)
	}
}

func (g *Group) insertFillFirst(ctx *transaction.Context, key resource.Key, amount resource.Amount, eligible func(*Slot) bool) (resource.Amount, error) {
	var accepted resource.Amount
	for _, s := range g.slots {
		if accepted == amount {
			break
		}
		if !eligible(s) {
			continue
		}
		n, err := s.Insert(ctx, key, amount-accepted)
		if err != nil {
			return accepted, err
		}
		accepted += n
	}
	return accepted, nil
}

func (g *Group) insertMatchingFirst(ctx *transaction.Context, key resource.Key, amount resource.Amount, eligible func(*Slot) bool) (resource.Amount, error) {
	holding := func(s *Slot) bool { return s.key == key && eligible(s) }
	accepted, err := g.insertFillFirst(ctx, key, amount, holding)
	if err != nil || accepted == amount {
		return accepted, err
	}
	rest, err := g.insertFillFirst(ctx, key, amount-accepted, eligible)
	return accepted + rest, err
}

// candidates returns the eligible slots that can still take key.
func (g *Group) candidates(key resource.Key, eligible func(*Slot) bool) []*Slot {
	var out []*Slot
	for _, s := range g.slots {
		if eligible(s) && s.Room(key) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (g *Group) insertRoundRobin(ctx *transaction.Context, key resource.Key, amount resource.Amount, eligible func(*Slot) bool) (resource.Amount, error) {
	var accepted resource.Amount
	for accepted < amount {
		open := g.candidates(key, eligible)
		if len(open) == 0 {
			break
		}
		remaining := amount - accepted
		share := remaining / resource.Amount(len(open))
		extra := remaining % resource.Amount(len(open))
		var round resource.Amount
		for i, s := range open {
			want := share
			if resource.Amount(i) < extra {
				want++
			}
			if want == 0 {
				continue
			}
			n, err := s.Insert(ctx, key, want)
			if err != nil {
				return accepted + round, err
			}
			round += n
		}
		if round == 0 {
			break
		}
		accepted += round
	}
	return accepted, nil
}

func (g *Group) insertWeighted(ctx *transaction.Context, key resource.Key, amount resource.Amount, eligible func(*Slot) bool) (resource.Amount, error) {
	open := g.candidates(key, eligible)
	if len(open) == 0 {
		return 0, nil
	}
	var total resource.Amount
	for _, s := range open {
		sum, err := total.Add(s.capacity)
		if err != nil {
			return g.insertRoundRobin(ctx, key, amount, eligible)
		}
		total = sum
	}
	var accepted resource.Amount
	for _, s := range open {
		want, err := amount.MulDiv(s.capacity, total)
		if err != nil {
			return accepted, err
		}
		if want == 0 {
			continue
		}
		n, err := s.Insert(ctx, key, want)
		if err != nil {
			return accepted, err
		}
		accepted += n
	}
	if accepted < amount {
		rest, err := g.insertFillFirst(ctx, key, amount-accepted, eligible)
		accepted += rest
		if err != nil {
			return accepted, err
		}
	}
	return accepted, nil
}
