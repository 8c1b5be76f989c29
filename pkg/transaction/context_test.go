package transaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"machinecore/pkg/resource"
)

// counter is a minimal participant holding one amount.
type counter struct {
	value    resource.Amount
	reverted []Kind
}

func (c *counter) add(ctx *Context, n resource.Amount) error {
	if err := EnsureOpen(ctx); err != nil {
		return err
	}
	prior := c.value
	c.value += n
	return ctx.Record(Record{Participant: c, Kind: KindInsert, Amount: prior, Delta: n})
}

func (c *counter) Revert(rec Record) {
	c.value = rec.Amount
	c.reverted = append(c.reverted, rec.Kind)
}

func TestRootCommitDiscardsLog(t *testing.T) {
	c := &counter{}
	ctx, err := Open(nil)
	require.NoError(t, err)
	require.NoError(t, c.add(ctx, 5))
	require.Equal(t, 1, ctx.Len())
	require.NoError(t, ctx.Commit())
	require.Equal(t, 0, ctx.Len())
	require.Equal(t, StateCommitted, ctx.State())
	require.Equal(t, resource.Amount(5), c.value)

	require.ErrorIs(t, c.add(ctx, 1), ErrContextClosed)
	require.ErrorIs(t, ctx.Commit(), ErrContextClosed)
	require.ErrorIs(t, ctx.Rollback(), ErrContextClosed)
}

func TestRollbackReplaysInReverse(t *testing.T) {
	c := &counter{value: 1}
	ctx := MustOpen(nil)
	require.NoError(t, c.add(ctx, 2))
	require.NoError(t, c.add(ctx, 3))
	require.Equal(t, resource.Amount(6), c.value)
	require.NoError(t, ctx.Rollback())
	require.Equal(t, resource.Amount(1), c.value)
	require.Len(t, c.reverted, 2)
	require.Equal(t, StateRolledBack, ctx.State())
}

func TestNestedChildRollbackLeavesParentOpen(t *testing.T) {
	c := &counter{}
	root := MustOpen(nil)
	require.NoError(t, c.add(root, 1))

	child, err := Open(root)
	require.NoError(t, err)
	require.Equal(t, 1, child.Depth())
	require.Same(t, root, child.Root())
	require.NoError(t, c.add(child, 10))
	require.NoError(t, child.Rollback())

	require.Equal(t, resource.Amount(1), c.value)
	require.True(t, root.IsOpen())
	require.NoError(t, root.Commit())
	require.Equal(t, resource.Amount(1), c.value)
}

func TestChildCommitThenParentRollback(t *testing.T) {
	c := &counter{}
	root := MustOpen(nil)
	child := MustOpen(root)
	require.NoError(t, c.add(child, 7))
	require.NoError(t, child.Commit())
	require.Equal(t, 1, root.Len())
	require.NoError(t, root.Rollback())
	require.Equal(t, resource.Zero, c.value)
}

func TestParentUnusableWhileChildOpen(t *testing.T) {
	c := &counter{}
	root := MustOpen(nil)
	child := MustOpen(root)

	require.ErrorIs(t, c.add(root, 1), ErrChildOpen)
	_, err := Open(root)
	require.ErrorIs(t, err, ErrChildOpen)

	child.Close()
	require.NoError(t, c.add(root, 1))
}

func TestOpenUnderClosedParent(t *testing.T) {
	root := MustOpen(nil)
	require.NoError(t, root.Commit())
	_, err := Open(root)
	require.ErrorIs(t, err, ErrContextClosed)
}

func TestCommitRollsBackAbandonedChild(t *testing.T) {
	c := &counter{}
	root := MustOpen(nil)
	child := MustOpen(root)
	require.NoError(t, c.add(child, 4))

	require.NoError(t, root.Commit())
	require.Equal(t, StateRolledBack, child.State())
	require.Equal(t, resource.Zero, c.value)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := &counter{}
	ctx := MustOpen(nil)
	require.NoError(t, c.add(ctx, 3))
	ctx.Close()
	ctx.Close()
	require.Equal(t, resource.Zero, c.value)
	require.Len(t, c.reverted, 1)

	var nilCtx *Context
	nilCtx.Close()
}

func TestEnsureOpenNil(t *testing.T) {
	require.ErrorIs(t, EnsureOpen(nil), ErrNoContext)
}

func TestOnCloseOrderAndResult(t *testing.T) {
	var got []string
	ctx := MustOpen(nil)
	require.NoError(t, ctx.OnClose(func(_ *Context, r Result) {
		got = append(got, "first:"+boolString(r.WasCommitted()))
	}))
	require.NoError(t, ctx.OnClose(func(_ *Context, r Result) {
		got = append(got, "second:"+boolString(r.WasCommitted()))
	}))
	require.NoError(t, ctx.Commit())
	require.Equal(t, []string{"first:true", "second:true"}, got)
	require.ErrorIs(t, ctx.OnClose(func(*Context, Result) {}), ErrContextClosed)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestRunCommitsOnSuccess(t *testing.T) {
	c := &counter{}
	err := Run(nil, func(ctx *Context) error { return c.add(ctx, 9) })
	require.NoError(t, err)
	require.Equal(t, resource.Amount(9), c.value)
}

func TestRunRollsBackOnError(t *testing.T) {
	c := &counter{}
	boom := errors.New("boom")
	err := Run(nil, func(ctx *Context) error {
		require.NoError(t, c.add(ctx, 9))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, resource.Zero, c.value)
}

func TestRunRollsBackOnPanic(t *testing.T) {
	c := &counter{}
	root := MustOpen(nil)
	require.PanicsWithValue(t, "tick failed", func() {
		_ = Run(root, func(ctx *Context) error {
			require.NoError(t, c.add(ctx, 9))
			panic("tick failed")
		})
	})
	require.Equal(t, resource.Zero, c.value)
	require.True(t, root.IsOpen(), "panic unwinds only the nested context")
	require.NoError(t, c.add(root, 1))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "committed", StateCommitted.String())
	require.Equal(t, "rolled_back", StateRolledBack.String())
	require.Equal(t, "insert", KindInsert.String())
}
