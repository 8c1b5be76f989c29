// Package transaction provides the nestable unit of work every storage
// mutation is recorded against. Storage mutates eagerly; a Context only keeps
// the journal needed to undo those mutations in reverse order.
//
// A Context is not safe for concurrent use. Callers serialise access per
// machine (see internal/core.Service).
package transaction

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrContextClosed is returned when a terminal context is used.
	ErrContextClosed = errors.New("transaction: context closed")
	// ErrChildOpen is returned when a context is used while one of its
	// children is still open.
	ErrChildOpen = errors.New("transaction: child context open")
	// ErrNoContext is returned when a mutation is attempted without a context.
	ErrNoContext = errors.New("transaction: no context")
)

// State is the lifecycle state of a Context.
type State uint8

const (
	StateOpen State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Result is the outcome passed to close callbacks.
type Result uint8

const (
	ResultRolledBack Result = iota
	ResultCommitted
)

// WasCommitted reports whether the context committed.
func (r Result) WasCommitted() bool { return r == ResultCommitted }

var ctxSeq uint64

// Context records mutations for atomic commit or rollback.
type Context struct {
	id      uint64
	parent  *Context
	depth   int
	state   State
	log     []Record
	child   *Context
	onClose []func(*Context, Result)
}

// Open begins a new context. A nil parent opens a root context. A parent may
// have at most one open child at a time.
func Open(parent *Context) (*Context, error) {
	ctx := &Context{id: atomic.AddUint64(&ctxSeq, 1)}
	if parent != nil {
		if parent.state != StateOpen {
			return nil, fmt.Errorf("open nested: %w", ErrContextClosed)
		}
		if parent.child != nil {
			return nil, fmt.Errorf("open nested: %w", ErrChildOpen)
		}
		ctx.parent = parent
		ctx.depth = parent.depth + 1
		parent.child = ctx
	}
	return ctx, nil
}

// MustOpen is Open for callers that own the parent and know it is usable.
func MustOpen(parent *Context) *Context {
	ctx, err := Open(parent)
	if err != nil {
		panic(err)
	}
	return ctx
}

// ID returns a process-unique identifier for the context.
func (c *Context) ID() uint64 { return c.id }

// Parent returns the enclosing context, or nil for a root.
func (c *Context) Parent() *Context { return c.parent }

// Root returns the outermost enclosing context.
func (c *Context) Root() *Context {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Depth is 0 for a root context.
func (c *Context) Depth() int { return c.depth }

// State returns the lifecycle state.
func (c *Context) State() State { return c.state }

// IsOpen reports whether the context still accepts mutations.
func (c *Context) IsOpen() bool { return c != nil && c.state == StateOpen }

// Len returns the number of records journaled in this context, including
// records merged from committed children.
func (c *Context) Len() int { return len(c.log) }

// EnsureOpen reports whether a mutation may be recorded against c right now.
// Participants call it before touching their state.
func EnsureOpen(c *Context) error {
	if c == nil {
		return ErrNoContext
	}
	if c.state != StateOpen {
		return ErrContextClosed
	}
	if c.child != nil {
		return ErrChildOpen
	}
	return nil
}

// Record appends rec to the journal.
func (c *Context) Record(rec Record) error {
	if err := EnsureOpen(c); err != nil {
		return err
	}
	if rec.Participant == nil {
		return errors.New("transaction: record without participant")
	}
	c.log = append(c.log, rec)
	return nil
}

// OnClose registers fn to run after the context commits or rolls back.
// Callbacks run in registration order.
func (c *Context) OnClose(fn func(*Context, Result)) error {
	if c.state != StateOpen {
		return ErrContextClosed
	}
	c.onClose = append(c.onClose, fn)
	return nil
}

// Commit finalises the context. A child hands its journal to the parent; a
// root discards it, making the mutations durable. A still-open child is
// rolled back first.
func (c *Context) Commit() error {
	if c.state != StateOpen {
		return ErrContextClosed
	}
	if c.child != nil {
		_ = c.child.Rollback()
	}
	if c.parent != nil {
		c.parent.log = append(c.parent.log, c.log...)
		c.parent.child = nil
	}
	c.log = nil
	c.state = StateCommitted
	c.fireClose(ResultCommitted)
	return nil
}

// Rollback undoes every journaled mutation in reverse order. A still-open
// child is rolled back first. The parent, if any, stays open.
func (c *Context) Rollback() error {
	if c.state != StateOpen {
		return ErrContextClosed
	}
	if c.child != nil {
		_ = c.child.Rollback()
	}
	for i := len(c.log) - 1; i >= 0; i-- {
		rec := c.log[i]
		rec.Participant.Revert(rec)
	}
	c.log = nil
	if c.parent != nil {
		c.parent.child = nil
	}
	c.state = StateRolledBack
	c.fireClose(ResultRolledBack)
	return nil
}

// Close rolls the context back if it is still open. It is safe to call on a
// terminal context and is meant for defer.
func (c *Context) Close() {
	if c != nil && c.state == StateOpen {
		_ = c.Rollback()
	}
}

func (c *Context) fireClose(result Result) {
	callbacks := c.onClose
	c.onClose = nil
	for _, fn := range callbacks {
		fn(c, result)
	}
}

// Run opens a context under parent, passes it to fn and commits when fn
// returns nil. On error or panic the context is rolled back; a panic is
// re-raised after the rollback.
func Run(parent *Context, fn func(*Context) error) (err error) {
	ctx, err := Open(parent)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			ctx.Close()
			panic(r)
		}
	}()
	if err := fn(ctx); err != nil {
		ctx.Close()
		return err
	}
	if ctx.state != StateOpen {
		return fmt.Errorf("run: %w", ErrContextClosed)
	}
	return ctx.Commit()
}
