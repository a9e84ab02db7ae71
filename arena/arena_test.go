package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
)

func newArena(t *testing.T, cfg config.Config, id uint64, opts ...Option) *Arena {
	t.Helper()
	p, err := handletable.Generate(cfg)
	require.NoError(t, err)
	a, err := New(id, p, opts...)
	require.NoError(t, err)
	return a
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnArenaEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestNew_Rejects(t *testing.T) {
	p, err := handletable.Generate(config.Default())
	require.NoError(t, err)

	_, err = New(8, p)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindOverflow, Phase: errors.PhaseArena})

	_, err = New(0, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = New(0, p, WithTLB(-1))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	a, err := New(7, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), a.ID())
	assert.Same(t, p, a.Plan())
}

func TestAllocate(t *testing.T) {
	a := newArena(t, config.Default(), 1)

	h, m, err := a.Allocate(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x9080_0000_0000_0000), h, "present, arena 1, class 1, slot 0")
	assert.True(t, m.Live())
	assert.Equal(t, uint64(100), m.Size)
	assert.Equal(t, int64(2), a.Nodes())

	got, err := a.Translate(h, false)
	require.NoError(t, err)
	assert.Same(t, m, got)

	h2, m2, err := a.Allocate(128)
	require.NoError(t, err)
	assert.Equal(t, h+1<<7, h2, "next slot of the same class")
	assert.NotSame(t, m, m2)
	assert.Equal(t, int64(2), a.Nodes(), "shares the bottom node")
}

func TestAllocate_Unsupported(t *testing.T) {
	a := newArena(t, config.Default(), 0)

	_, _, err := a.Allocate(1 << 40)
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestAllocate_Exhausted(t *testing.T) {
	cfg := config.Default()
	cfg.SizeBits = 6
	a := newArena(t, cfg, 0)

	// class 39 is the only class this large and has a single 512-slot level
	seen := map[uint64]bool{}
	for i := 0; i < 512; i++ {
		h, _, err := a.Allocate(1 << 45)
		require.NoError(t, err, "allocation %d", i)
		require.False(t, seen[h], "handle %#x issued twice", h)
		seen[h] = true
	}
	_, _, err := a.Allocate(1 << 45)
	assert.ErrorIs(t, err, errors.ErrExhausted)
	assert.Zero(t, a.Nodes())

	var victim uint64
	for h := range seen {
		victim = h
		break
	}
	require.NoError(t, a.Free(victim))
	again, _, err := a.Allocate(1 << 45)
	require.NoError(t, err)
	assert.Equal(t, victim, again)
}

func TestAllocate_NodeLimit(t *testing.T) {
	a := newArena(t, config.Default(), 0, WithNodeLimit(2))

	h, _, err := a.Allocate(64)
	require.NoError(t, err)

	_, _, err = a.Allocate(1024)
	assert.ErrorIs(t, err, errors.ErrAllocation)
	assert.NotErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, int64(2), a.Nodes())

	h2, _, err := a.Allocate(64)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
}

func TestTranslate_Rejects(t *testing.T) {
	a := newArena(t, config.Default(), 1)
	h, _, err := a.Allocate(64)
	require.NoError(t, err)

	_, err = a.Translate(h&^(1<<63), false)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput, Phase: errors.PhaseArena})
	assert.Contains(t, err.Error(), "not present")

	other := newArena(t, config.Default(), 2)
	_, err = other.Translate(h, false)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "arena 1")

	cfg := config.Default()
	cfg.SizeBits = 6
	wide := newArena(t, cfg, 0)
	_, err = wide.Translate(1<<63|50<<54, false)
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestTranslate_Lazy(t *testing.T) {
	a := newArena(t, config.Default(), 0)
	h, _, err := a.Allocate(64)
	require.NoError(t, err)

	far := h | 5<<24
	_, err = a.Translate(far, false)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, int64(2), a.Nodes())

	m, err := a.Translate(far, true)
	require.NoError(t, err)
	assert.False(t, m.Live(), "translate does not allocate a handle")
	assert.Equal(t, int64(4), a.Nodes())
}

func TestTranslate_TLB(t *testing.T) {
	a := newArena(t, config.Default(), 0)
	h, m, err := a.Allocate(64)
	require.NoError(t, err)

	got, err := a.Translate(h, false)
	require.NoError(t, err)
	assert.Same(t, m, got)
	got, err = a.Translate(h|0x3f, false)
	require.NoError(t, err)
	assert.Same(t, m, got, "offset bits do not change the slot")

	hits, misses := a.TLBStats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	off := newArena(t, config.Default(), 0, WithTLB(0))
	h, _, err = off.Allocate(64)
	require.NoError(t, err)
	_, err = off.Translate(h, false)
	require.NoError(t, err)
	hits, misses = off.TLBStats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestPinUnpinFree(t *testing.T) {
	a := newArena(t, config.Default(), 0)
	h, m, err := a.Allocate(100)
	require.NoError(t, err)
	m.Base = 0x1000

	addr, err := a.Pin(h + 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1005), addr)
	assert.Equal(t, int64(1), m.Pins())

	_, err = a.Pin(h + 100)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindOutOfBounds})

	err = a.Free(h)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.True(t, m.Live())

	require.NoError(t, a.Unpin(h))
	assert.ErrorIs(t, a.Unpin(h), errors.ErrInvalidInput)

	require.NoError(t, a.Free(h))
	assert.False(t, m.Live())
	assert.Zero(t, m.Pins())

	_, err = a.Pin(h)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, a.Free(h), errors.ErrNotFound)

	again, m2, err := a.Allocate(70)
	require.NoError(t, err)
	assert.Equal(t, h, again, "freed slot is reused")
	assert.Same(t, m, m2)
	assert.Equal(t, uint64(70), m2.Size)
}

func TestObservers(t *testing.T) {
	a := newArena(t, config.Default(), 3)
	r := &recorder{}
	a.Subscribe(r)

	h, m, err := a.Allocate(10)
	require.NoError(t, err)
	require.NoError(t, a.Free(h))

	require.Len(t, r.events, 2)
	assert.Equal(t, Event{Type: EventMapped, Handle: h, Class: 0, Mapping: m}, r.events[0])
	assert.Equal(t, EventReleased, r.events[1].Type)
	assert.Equal(t, "released", r.events[1].Type.String())

	a.Unsubscribe(r)
	_, _, err = a.Allocate(10)
	require.NoError(t, err)
	assert.Len(t, r.events, 2)
}

func TestConcurrentAllocate(t *testing.T) {
	a := newArena(t, config.Default(), 0)

	const workers, each = 16, 64
	handles := make([][]uint64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < each; j++ {
				h, m, err := a.Allocate(uint64(1 + (i+j)%4*64))
				if err != nil {
					t.Error(err)
					return
				}
				m.Base = h
				handles[i] = append(handles[i], h)
			}
		}(i)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, hs := range handles {
		for _, h := range hs {
			require.False(t, seen[h], "handle %#x issued twice", h)
			seen[h] = true

			m, err := a.Translate(h, false)
			require.NoError(t, err)
			assert.Equal(t, h, m.Base)
		}
	}
	assert.Len(t, seen, workers*each)
}

func TestAllocate_EverySupportedClass(t *testing.T) {
	cfg := config.Default()
	cfg.SizeBase = 3
	cfg.SizeBits = 2
	a := newArena(t, cfg, 0)

	for _, s := range a.Plan().Feasible() {
		h, _, err := a.Allocate(s.Class.Size)
		require.NoError(t, err, "class %d", s.Class.Index)
		m, err := a.Translate(h, false)
		require.NoError(t, err)
		assert.Equal(t, s.Class.Size, m.Size)
	}
}

func TestPinFreeRace(t *testing.T) {
	a := newArena(t, config.Default(), 0)

	for i := 0; i < 500; i++ {
		h, m, err := a.Allocate(64)
		require.NoError(t, err)

		var pinErr, freeErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, pinErr = a.Pin(h)
		}()
		go func() {
			defer wg.Done()
			freeErr = a.Free(h)
		}()
		wg.Wait()

		// exactly one side wins
		if pinErr == nil {
			require.ErrorIs(t, freeErr, errors.ErrInvalidInput, "iteration %d", i)
			require.True(t, m.Live())
			require.NoError(t, a.Unpin(h))
			require.NoError(t, a.Free(h))
		} else {
			require.NoError(t, freeErr, "iteration %d", i)
			require.ErrorIs(t, pinErr, errors.ErrNotFound)
		}
		require.False(t, m.Live())
		require.Zero(t, m.Pins())
	}
}
