package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountAdd(t *testing.T) {
	got, err := Amount(40).Add(2)
	require.NoError(t, err)
	require.Equal(t, Amount(42), got)

	got, err = MaxAmount.Add(0)
	require.NoError(t, err)
	require.Equal(t, MaxAmount, got)

	got, err = MaxAmount.Add(1)
	require.ErrorIs(t, err, ErrAmountOverflow)
	require.Equal(t, MaxAmount, got, "failed add leaves the receiver value")
}

func TestAmountSub(t *testing.T) {
	got, err := Amount(10).Sub(10)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = Amount(3).Sub(4)
	require.True(t, errors.Is(err, ErrAmountUnderflow))
}

func TestAmountSaturating(t *testing.T) {
	require.Equal(t, MaxAmount, (MaxAmount - 1).SaturatingAdd(5))
	require.Equal(t, Amount(7), Amount(3).SaturatingAdd(4))
	require.Equal(t, Zero, Amount(3).SaturatingSub(9))
	require.Equal(t, Amount(1), Amount(3).SaturatingSub(2))
}

func TestAmountMin(t *testing.T) {
	require.Equal(t, Amount(5), Amount(5).Min(9))
	require.Equal(t, Amount(9), Amount(50).Min(9))
	require.Equal(t, Zero, MaxAmount.Min(0))
}

func TestAmountMulDiv(t *testing.T) {
	got, err := MaxAmount.MulDiv(1, 2)
	require.NoError(t, err)
	require.Equal(t, MaxAmount/2, got)

	got, err = Amount(15).MulDiv(10, 30)
	require.NoError(t, err)
	require.Equal(t, Amount(5), got)

	_, err = MaxAmount.MulDiv(3, 2)
	require.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Amount(1).MulDiv(1, 0)
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestAmountBuckets(t *testing.T) {
	require.Equal(t, "2B", (2 * DropletsPerBucket).Buckets())
	require.Equal(t, "0+40500/81000B", (DropletsPerBucket / 2).Buckets())
}
