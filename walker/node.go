package walker

import (
	"sync/atomic"

	"github.com/wippyai/handletable/errors"
)

// Node is one table node. Interior nodes (level > 0) hold child references;
// bottom nodes (level 0) hold leaf entries in place. A published child is
// owned by its parent slot and is never freed by the walker.
type Node[E any] struct {
	children []atomic.Pointer[Node[E]]
	entries  []E
	level    int
}

func newNode[E any](fanout, level int) *Node[E] {
	n := &Node[E]{level: level}
	if level > 0 {
		n.children = make([]atomic.Pointer[Node[E]], fanout)
	} else {
		n.entries = make([]E, fanout)
	}
	return n
}

// NewRoot allocates the top-level node for a walk described by s.
// The caller owns it; the walker never allocates a top-level node.
func NewRoot[E any](s *Spec) *Node[E] {
	return newNode[E](s.Fanout, s.Depth()-1)
}

// Level is the indirection level this node indexes.
func (n *Node[E]) Level() int {
	return n.level
}

// Len is the node's slot count.
func (n *Node[E]) Len() int {
	if n.level > 0 {
		return len(n.children)
	}
	return len(n.entries)
}

// Child returns the node published in slot i, or nil.
func (n *Node[E]) Child(i int) *Node[E] {
	if n.level == 0 || i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i].Load()
}

// Entry returns the leaf entry at slot i of a bottom node.
func (n *Node[E]) Entry(i int) *E {
	if n.level != 0 || i < 0 || i >= len(n.entries) {
		return nil
	}
	return &n.entries[i]
}

// Populated counts non-empty child slots. Bottom nodes report zero.
func (n *Node[E]) Populated() int {
	count := 0
	for i := range n.children {
		if n.children[i].Load() != nil {
			count++
		}
	}
	return count
}

// Allocator accounts for intermediate nodes created by walks.
type Allocator interface {
	// Reserve claims room for one node or fails with an allocation error.
	Reserve() error
	// Release returns a reservation whose node was never published.
	Release()
}

// Budget is an Allocator with an optional cap on live nodes.
// A limit of zero means unlimited.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget creates a budget capped at limit nodes.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Reserve implements Allocator.
func (b *Budget) Reserve() error {
	n := b.used.Add(1)
	if b.limit > 0 && n > b.limit {
		b.used.Add(-1)
		return errors.AllocationFailed(errors.PhaseWalk, "node budget exhausted", nil)
	}
	return nil
}

// Release implements Allocator.
func (b *Budget) Release() {
	b.used.Add(-1)
}

// Nodes reports the number of live intermediate nodes.
func (b *Budget) Nodes() int64 {
	return b.used.Load()
}

// Limit reports the configured cap, zero when unlimited.
func (b *Budget) Limit() int64 {
	return b.limit
}
