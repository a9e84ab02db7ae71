package walker

import (
	"fmt"
	"sync/atomic"

	"github.com/wippyai/handletable/errors"
)

type options struct {
	alloc Allocator
}

// Option configures a Walker.
type Option func(*options)

// WithAllocator makes walks account new nodes against a.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}

// Walker is the compiled walk function for one size class. E is the leaf
// entry type; the walker hands out references to entries but never reads
// or writes them.
//
// A Walker is safe for concurrent use on a shared table. New nodes are
// published with compare-and-swap: when two walks race on the same empty
// slot, the loser returns its reservation and follows the winner's node.
type Walker[E any] struct {
	spec  *Spec
	alloc Allocator
	last  Level
	inner []Level
}

// New compiles s into a walker.
func New[E any](s *Spec, opts ...Option) *Walker[E] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.alloc == nil {
		o.alloc = NewBudget(0)
	}
	return &Walker[E]{
		spec:  s,
		alloc: o.alloc,
		inner: s.Levels[:len(s.Levels)-1],
		last:  s.Levels[len(s.Levels)-1],
	}
}

// Spec returns the walk description this walker was compiled from.
func (w *Walker[E]) Spec() *Spec {
	return w.spec
}

// NewRoot allocates a top-level node shaped for this walker.
func (w *Walker[E]) NewRoot() *Node[E] {
	return NewRoot[E](w.spec)
}

// Walk descends from top to the leaf slot for handle h.
//
// With allocate unset an empty slot ends the walk with errors.ErrNotFound
// and nothing is allocated. With allocate set, missing intermediate nodes
// are created and published; if the allocator refuses, the walk fails with
// errors.ErrAllocation.
func (w *Walker[E]) Walk(h uint64, top *Node[E], allocate bool) (*E, error) {
	if top == nil {
		return nil, errors.InvalidInput(errors.PhaseWalk, "nil top-level node")
	}
	if top.level != len(w.spec.Levels)-1 || top.Len() != w.spec.Fanout {
		return nil, errors.InvalidInput(errors.PhaseWalk,
			fmt.Sprintf("top-level node does not belong to %s", w.spec.Name()))
	}

	cur := top
	for _, lv := range w.inner {
		slot := &cur.children[(h>>lv.Shift)&lv.Mask]
		next := slot.Load()
		if next == nil {
			if !allocate {
				return nil, errors.NotFound(h, lv.Level)
			}
			var err error
			if next, err = w.publish(slot, lv.Level-1); err != nil {
				return nil, fmt.Errorf("walk %#x: %w", h, err)
			}
		}
		cur = next
	}
	return &cur.entries[(h>>w.last.Shift)&w.last.Mask], nil
}

func (w *Walker[E]) publish(slot *atomic.Pointer[Node[E]], level int) (*Node[E], error) {
	if err := w.alloc.Reserve(); err != nil {
		return nil, errors.AllocationFailed(errors.PhaseWalk,
			fmt.Sprintf("level %d node for %s", level, w.spec.Name()), err)
	}
	fresh := newNode[E](w.spec.Fanout, level)
	if slot.CompareAndSwap(nil, fresh) {
		return fresh, nil
	}
	w.alloc.Release()
	return slot.Load(), nil
}
