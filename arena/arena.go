package arena

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/dispatch"
	"github.com/wippyai/handletable/errors"
	"github.com/wippyai/handletable/layout"
	"github.com/wippyai/handletable/walker"
)

type options struct {
	tlbBits   int
	nodeLimit int64
}

// Option configures an Arena.
type Option func(*options)

// WithTLB caches translations in a direct-mapped table of 2^bits entries.
// Zero disables the cache.
func WithTLB(bits int) Option {
	return func(o *options) {
		o.tlbBits = bits
	}
}

// WithNodeLimit caps the number of table nodes the arena may allocate
// across all size classes. Zero means unlimited.
func WithNodeLimit(n int64) Option {
	return func(o *options) {
		o.nodeLimit = n
	}
}

// classTable is the per-class state: the top-level node and the handle
// slots handed out so far.
type classTable struct {
	w     *walker.Walker[Mapping]
	root  *walker.Node[Mapping]
	limit uint64
	next  atomic.Uint64

	mu   sync.Mutex
	free []uint64
}

func (c *classTable) take() (uint64, bool) {
	c.mu.Lock()
	if n := len(c.free); n > 0 {
		slot := c.free[n-1]
		c.free = c.free[:n-1]
		c.mu.Unlock()
		return slot, true
	}
	c.mu.Unlock()

	slot := c.next.Add(1) - 1
	if slot >= c.limit {
		c.next.Add(^uint64(0))
		return 0, false
	}
	return slot, true
}

func (c *classTable) put(slot uint64) {
	c.mu.Lock()
	c.free = append(c.free, slot)
	c.mu.Unlock()
}

// Arena owns one table per supported size class for a single arena id.
// It is safe for concurrent use.
type Arena struct {
	id      uint64
	plan    *handletable.Plan
	table   *dispatch.Table[*walker.Walker[Mapping]]
	classes []*classTable
	budget  *walker.Budget
	tlb     *tlb

	observers []Observer
	obsMu     sync.RWMutex
}

// New creates the arena with the given id over a generated plan.
func New(id uint64, plan *handletable.Plan, opts ...Option) (*Arena, error) {
	if plan == nil {
		return nil, errors.InvalidInput(errors.PhaseArena, "nil plan")
	}
	o := options{tlbBits: DefaultTLBBits}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tlbBits < 0 || o.tlbBits > 24 {
		return nil, errors.InvalidInput(errors.PhaseArena,
			fmt.Sprintf("tlb bits %d outside [0, 24]", o.tlbBits))
	}

	cfg := plan.Config
	if id>>uint(cfg.ArenaBits) != 0 {
		return nil, errors.Overflow(errors.PhaseArena, []string{"arena"}, id, cfg.ArenaBits)
	}

	budget := walker.NewBudget(o.nodeLimit)
	table, err := handletable.Compile[Mapping](plan, walker.WithAllocator(budget))
	if err != nil {
		return nil, err
	}

	a := &Arena{
		id:      id,
		plan:    plan,
		table:   table,
		classes: make([]*classTable, table.Len()),
		budget:  budget,
	}
	if o.tlbBits > 0 {
		a.tlb = newTLB(o.tlbBits)
	}
	table.Each(func(tag int, w *walker.Walker[Mapping], supported bool) bool {
		if !supported {
			return true
		}
		bits := w.Spec().Depth() * w.Spec().BitsPerLevel
		limit := ^uint64(0)
		if bits < 64 {
			limit = uint64(1) << uint(bits)
		}
		a.classes[tag] = &classTable{w: w, root: w.NewRoot(), limit: limit}
		return true
	})

	Logger().Debug("arena created",
		zap.Uint64("arena", id),
		zap.Int("classes", table.Supported()),
		zap.Int("tlb_bits", o.tlbBits),
		zap.Int64("node_limit", o.nodeLimit))
	return a, nil
}

// ID returns the arena id encoded in every handle it issues.
func (a *Arena) ID() uint64 {
	return a.id
}

// Plan returns the plan the arena was built from.
func (a *Arena) Plan() *handletable.Plan {
	return a.plan
}

// Nodes reports the interior and bottom nodes allocated by walks. Top-level
// nodes are not counted.
func (a *Arena) Nodes() int64 {
	return a.budget.Nodes()
}

// TLBStats reports translation cache hits and misses.
func (a *Arena) TLBStats() (hits, misses uint64) {
	if a.tlb == nil {
		return 0, 0
	}
	return a.tlb.hits.Load(), a.tlb.misses.Load()
}

// Allocate issues a handle for a size-byte object from the smallest
// supported class that holds it. The returned handle has a zero offset.
// The caller sets Mapping.Base before sharing the handle.
func (a *Arena) Allocate(size uint64) (uint64, *Mapping, error) {
	s, err := a.plan.ClassFor(size)
	if err != nil {
		return 0, nil, err
	}
	ct := a.classes[s.Class.Index]

	slot, ok := ct.take()
	if !ok {
		return 0, nil, errors.Exhausted(errors.PhaseArena,
			fmt.Sprintf("class %d has no free handles (%d issued)", s.Class.Index, ct.limit))
	}

	parts := layout.Parts{
		Present: true,
		Arena:   a.id,
		SizeTag: uint64(s.Class.Index),
		Levels:  make([]uint64, s.Depth()),
	}
	mask := uint64(s.Fanout) - 1
	for i := range parts.Levels {
		parts.Levels[i] = (slot >> uint(s.BitsPerLevel*i)) & mask
	}
	h, err := s.Layout.Compose(parts)
	if err != nil {
		ct.put(slot)
		return 0, nil, err
	}

	m, err := ct.w.Walk(h, ct.root, true)
	if err != nil {
		ct.put(slot)
		Logger().Warn("handle allocation failed",
			zap.Uint64("arena", a.id),
			zap.Int("class", s.Class.Index),
			zap.Error(err))
		return 0, nil, err
	}

	m.Base = 0
	m.Size = size
	m.state.Store(1)
	a.notify(Event{Type: EventMapped, Handle: h, Class: s.Class.Index, Mapping: m})
	return h, m, nil
}

// Translate returns the leaf entry for a handle. The offset field is
// ignored. With allocate set, missing nodes on the path are created.
// Translate does not check that the handle is live.
func (a *Arena) Translate(handle uint64, allocate bool) (*Mapping, error) {
	w, err := a.table.Route(handle)
	if err != nil {
		return nil, err
	}
	s := w.Spec()
	if s.Layout.Field(layout.FieldPresent).Extract(handle) != 1 {
		return nil, errors.New(errors.PhaseArena, errors.KindInvalidInput).
			Value(handle).
			Detail("handle %#x is not present", handle).
			Build()
	}
	if id := s.Layout.Field(layout.FieldArena).Extract(handle); id != a.id {
		return nil, errors.New(errors.PhaseArena, errors.KindInvalidInput).
			Value(handle).
			Detail("handle %#x belongs to arena %d, not %d", handle, id, a.id).
			Build()
	}

	key := handle >> uint(s.Class.OffsetBits)
	if a.tlb != nil {
		if m := a.tlb.lookup(key); m != nil {
			return m, nil
		}
	}

	m, err := w.Walk(handle, a.classes[s.Class.Index].root, allocate)
	if err != nil {
		return nil, err
	}
	if a.tlb != nil {
		a.tlb.fill(key, m)
	}
	return m, nil
}

// Pin resolves a handle to an address and holds the mapping until Unpin.
// A handle that is freed concurrently is either pinned first, making the
// Free fail, or reported as not allocated.
func (a *Arena) Pin(handle uint64) (uint64, error) {
	m, err := a.Translate(handle, false)
	if err != nil {
		return 0, err
	}
	for {
		n := m.state.Load()
		if n == 0 {
			return 0, notAllocated(handle)
		}
		if m.state.CompareAndSwap(n, n+1) {
			break
		}
	}

	w, _ := a.table.Route(handle)
	off := w.Spec().Layout.Field(layout.FieldOffset).Extract(handle)
	if off >= m.Size {
		m.state.Add(-1)
		return 0, errors.New(errors.PhaseArena, errors.KindOutOfBounds).
			Value(off).
			Detail("offset %d outside %d-byte object", off, m.Size).
			Build()
	}
	return m.Base + off, nil
}

// Unpin releases one pin taken by Pin.
func (a *Arena) Unpin(handle uint64) error {
	m, err := a.Translate(handle, false)
	if err != nil {
		return err
	}
	for {
		n := m.state.Load()
		if n <= 1 {
			return errors.InvalidInput(errors.PhaseArena,
				fmt.Sprintf("handle %#x is not pinned", handle))
		}
		if m.state.CompareAndSwap(n, n-1) {
			return nil
		}
	}
}

// Free releases a handle. Its slot may be reissued by a later Allocate,
// which resets the mapping. Pinned handles cannot be freed.
func (a *Arena) Free(handle uint64) error {
	m, err := a.Translate(handle, false)
	if err != nil {
		return err
	}
	for {
		n := m.state.Load()
		switch {
		case n == 0:
			return notAllocated(handle)
		case n > 1:
			return errors.InvalidInput(errors.PhaseArena,
				fmt.Sprintf("handle %#x is pinned %d times", handle, n-1))
		}
		if m.state.CompareAndSwap(1, 0) {
			break
		}
	}

	w, _ := a.table.Route(handle)
	s := w.Spec()
	var slot uint64
	for i := s.Depth() - 1; i >= 0; i-- {
		slot = slot<<uint(s.BitsPerLevel) | s.Layout.LevelIndex(handle, i)
	}
	a.classes[s.Class.Index].put(slot)

	a.notify(Event{Type: EventReleased, Handle: handle, Class: s.Class.Index, Mapping: m})
	return nil
}

func notAllocated(handle uint64) error {
	return errors.New(errors.PhaseArena, errors.KindNotFound).
		Value(handle).
		Detail("handle %#x is not allocated", handle).
		Build()
}

// Subscribe adds an observer for lifecycle events.
func (a *Arena) Subscribe(o Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	a.observers = append(a.observers, o)
}

// Unsubscribe removes an observer. Observers must be comparable.
func (a *Arena) Unsubscribe(o Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	for i, obs := range a.observers {
		if obs == o {
			a.observers = append(a.observers[:i], a.observers[i+1:]...)
			return
		}
	}
}

func (a *Arena) notify(e Event) {
	a.obsMu.RLock()
	defer a.obsMu.RUnlock()
	for _, o := range a.observers {
		o.OnArenaEvent(e)
	}
}
