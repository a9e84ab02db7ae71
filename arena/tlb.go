package arena

import (
	"sync/atomic"
)

// DefaultTLBBits sizes the software TLB at 512 entries.
const DefaultTLBBits = 9

type tlbEntry struct {
	mapping *Mapping
	key     uint64
}

// tlb is a direct-mapped cache from a handle with its offset stripped to
// the leaf slot it translates to. Slots never move once published, so
// entries never need invalidating.
type tlb struct {
	entries []atomic.Pointer[tlbEntry]
	mask    uint64
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func newTLB(bits int) *tlb {
	return &tlb{
		entries: make([]atomic.Pointer[tlbEntry], 1<<bits),
		mask:    uint64(1)<<bits - 1,
	}
}

func (t *tlb) lookup(key uint64) *Mapping {
	if e := t.entries[key&t.mask].Load(); e != nil && e.key == key {
		t.hits.Add(1)
		return e.mapping
	}
	t.misses.Add(1)
	return nil
}

func (t *tlb) fill(key uint64, m *Mapping) {
	t.entries[key&t.mask].Store(&tlbEntry{key: key, mapping: m})
}
