package resource

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Amount is an unsigned quantity of a resource. Arithmetic never wraps:
// Add and Sub report overflow/underflow instead.
type Amount uint64

const (
	// Zero is the empty amount.
	Zero Amount = 0
	// MaxAmount is the largest representable amount.
	MaxAmount Amount = math.MaxUint64
	// DropletsPerBucket is the fluid sub-unit granularity: one bucket of
	// fluid is this many droplets.
	DropletsPerBucket Amount = 81000
)

var (
	// ErrAmountOverflow is returned when an addition would exceed MaxAmount.
	ErrAmountOverflow = errors.New("resource: amount overflow")
	// ErrAmountUnderflow is returned when a subtraction would go below zero.
	ErrAmountUnderflow = errors.New("resource: amount underflow")
)

// Add returns a+x or ErrAmountOverflow.
func (a Amount) Add(x Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(x), 0)
	if carry != 0 {
		return a, fmt.Errorf("%w: %d + %d", ErrAmountOverflow, a, x)
	}
	return Amount(sum), nil
}

// Sub returns a-x or ErrAmountUnderflow.
func (a Amount) Sub(x Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(x), 0)
	if borrow != 0 {
		return a, fmt.Errorf("%w: %d - %d", ErrAmountUnderflow, a, x)
	}
	return Amount(diff), nil
}

// SaturatingAdd returns a+x clamped to MaxAmount.
func (a Amount) SaturatingAdd(x Amount) Amount {
	sum, carry := bits.Add64(uint64(a), uint64(x), 0)
	if carry != 0 {
		return MaxAmount
	}
	return Amount(sum)
}

// SaturatingSub returns a-x clamped to Zero.
func (a Amount) SaturatingSub(x Amount) Amount {
	if x >= a {
		return Zero
	}
	return a - x
}

// Min returns the smaller of a and limit.
func (a Amount) Min(limit Amount) Amount {
	if a < limit {
		return a
	}
	return limit
}

// MulDiv returns a*num/den computed without intermediate overflow. The
// result must fit in an Amount, which holds whenever num <= den.
func (a Amount) MulDiv(num, den Amount) (Amount, error) {
	if den == 0 {
		return Zero, fmt.Errorf("%w: division by zero", ErrAmountOverflow)
	}
	hi, lo := bits.Mul64(uint64(a), uint64(num))
	if hi >= uint64(den) {
		return MaxAmount, fmt.Errorf("%w: %d * %d / %d", ErrAmountOverflow, a, num, den)
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	return Amount(q), nil
}

// IsZero reports whether the amount is empty.
func (a Amount) IsZero() bool { return a == 0 }

// Buckets formats a fluid amount in buckets for display.
func (a Amount) Buckets() string {
	whole := a / DropletsPerBucket
	rem := a % DropletsPerBucket
	if rem == 0 {
		return fmt.Sprintf("%dB", whole)
	}
	return fmt.Sprintf("%d+%d/%dB", whole, rem, DropletsPerBucket)
}
