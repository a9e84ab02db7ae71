package wasmgen

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/config"
	"github.com/wippyai/handletable/errors"
	"github.com/wippyai/handletable/layout"
	"github.com/wippyai/handletable/walker"
)

func plan(t *testing.T, cfg config.Config) *handletable.Plan {
	t.Helper()
	p, err := handletable.Generate(cfg)
	require.NoError(t, err)
	return p
}

func load(t *testing.T, p *handletable.Plan, cfg *Config) *Module {
	t.Helper()
	ctx := context.Background()
	m, err := Load(ctx, p, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })
	return m
}

func handle(t *testing.T, s *walker.Spec, top ...uint64) uint64 {
	t.Helper()
	p := layout.Parts{
		Present: true,
		SizeTag: uint64(s.Class.Index),
		Levels:  make([]uint64, s.Depth()),
	}
	for i, v := range top {
		p.Levels[s.Depth()-1-i] = v
	}
	h, err := s.Layout.Compose(p)
	require.NoError(t, err)
	return h
}

func TestEmit_CompilesUnderWazero(t *testing.T) {
	ctx := context.Background()
	cfgs := map[string]config.Config{
		"default": config.Default(),
	}
	deep := config.Default()
	deep.MaxLevels = 5
	cfgs["five levels"] = deep
	wide := config.Default()
	wide.SizeBits = 6
	cfgs["partial"] = wide
	narrow := config.Default()
	narrow.BitsPerLevel = 4
	narrow.ArenaBits = 0
	cfgs["narrow nodes"] = narrow

	for name, cfg := range cfgs {
		t.Run(name, func(t *testing.T) {
			p := plan(t, cfg)
			code, err := Emit(p, nil)
			require.NoError(t, err)

			rt := wazero.NewRuntime(ctx)
			defer rt.Close(ctx)
			compiled, err := rt.CompileModule(ctx, code)
			require.NoError(t, err)

			exports := compiled.ExportedFunctions()
			assert.Contains(t, exports, ExportAllocNode)
			for _, s := range p.Feasible() {
				assert.Contains(t, exports, s.Name())
			}
			assert.Len(t, exports, 1+len(p.Feasible()))
			assert.Contains(t, compiled.ExportedMemories(), ExportMemory)
		})
	}
}

func TestEmit_Rejects(t *testing.T) {
	p := plan(t, config.Default())

	_, err := Emit(p, &Config{MaxPages: MaxPages + 1})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	wide := config.Default()
	wide.BitsPerLevel = 18
	wide.MaxLevels = 2
	_, err = Emit(plan(t, wide), nil)
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestLoad_Dispatch(t *testing.T) {
	cfg := config.Default()
	cfg.SizeBits = 6
	p := plan(t, cfg)
	m := load(t, p, nil)

	assert.Same(t, p, m.Plan())
	assert.Equal(t, 64, m.Dispatch().Len())
	assert.Equal(t, p.Dispatch.Supported(), m.Dispatch().Supported())

	w, err := m.Dispatch().Lookup(12)
	require.NoError(t, err)
	assert.Same(t, p.Specs[12], w.Spec())

	_, err = m.Dispatch().Lookup(50)
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestWalk_NotFound(t *testing.T) {
	ctx := context.Background()
	p := plan(t, config.Default())
	m := load(t, p, nil)

	w, err := m.Dispatch().Lookup(0)
	require.NoError(t, err)
	root, err := w.NewRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, root.Level)

	_, err = w.Walk(ctx, handle(t, w.Spec(), 1, 2, 3), root, false)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.NotErrorIs(t, err, errors.ErrAllocation)
	assert.Zero(t, m.Nodes())

	data, err := m.Memory().Read(root.Addr, uint32(w.Spec().NodeBytes()))
	require.NoError(t, err)
	for i, b := range data {
		require.Zero(t, b, "root byte %d", i)
	}
}

func TestWalk_Convergence(t *testing.T) {
	ctx := context.Background()
	p := plan(t, config.Default())
	m := load(t, p, nil)

	w, err := m.Dispatch().Lookup(3)
	require.NoError(t, err)
	root, err := w.NewRoot(ctx)
	require.NoError(t, err)

	h := handle(t, w.Spec(), 7, 8, 9)
	first, err := w.Walk(ctx, h, root, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, uint32(HeapBase))
	assert.Equal(t, 2, m.Nodes())

	require.NoError(t, m.WriteEntry(first, 0xfeed_beef))

	second, err := w.Walk(ctx, h, root, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := w.Walk(ctx, h|0x1ff, root, false)
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, 2, m.Nodes())

	v, err := m.ReadEntry(third)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xfeed_beef), v)
}

func TestWalk_MatchesNative(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.MaxLevels = 4
	p := plan(t, cfg)
	m := load(t, p, nil)

	budget := walker.NewBudget(0)
	native, err := handletable.Compile[uint64](p, walker.WithAllocator(budget))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for _, class := range []int{0, 5, 13, 30} {
		ww, err := m.Dispatch().Lookup(class)
		require.NoError(t, err)
		nw, err := native.Lookup(class)
		require.NoError(t, err)
		require.Equal(t, ww.Spec().Depth(), nw.Spec().Depth())

		wroot, err := ww.NewRoot(ctx)
		require.NoError(t, err)
		nroot := nw.NewRoot()

		slots := map[*uint64]uint32{}
		addrs := map[uint32]*uint64{}
		for i := 0; i < 200; i++ {
			// small index ranges force shared prefixes and repeats
			path := make([]uint64, ww.Spec().Depth())
			for j := range path {
				path[j] = uint64(rng.Int63n(4))
			}
			h := handle(t, ww.Spec(), path...)

			got, err := ww.Walk(ctx, h, wroot, true)
			require.NoError(t, err)
			want, err := nw.Walk(h, nroot, true)
			require.NoError(t, err)

			if prev, ok := slots[want]; ok {
				assert.Equal(t, prev, got, "class %d handle %#x", class, h)
			}
			if prev, ok := addrs[got]; ok {
				assert.Same(t, prev, want, "class %d handle %#x", class, h)
			}
			slots[want], addrs[got] = got, want
		}
		assert.Equal(t, int(budget.Nodes()), m.Nodes(), "class %d", class)
	}
}

func TestWalk_SingleLevel(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SizeBits = 6
	p := plan(t, cfg)
	m := load(t, p, nil)

	w, err := m.Dispatch().Lookup(39)
	require.NoError(t, err)
	require.Equal(t, 1, w.Spec().Depth())

	root, err := w.NewRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, root.Level)

	slot, err := w.Walk(ctx, handle(t, w.Spec(), 77), root, false)
	require.NoError(t, err)
	assert.Equal(t, root.Addr+77*walker.SlotBytes, slot)
	assert.Zero(t, m.Nodes())
}

func TestWalk_AllocationFailure(t *testing.T) {
	ctx := context.Background()
	p := plan(t, config.Default())
	m := load(t, p, &Config{MaxPages: 1})

	w, err := m.Dispatch().Lookup(0)
	require.NoError(t, err)
	root, err := w.NewRoot(ctx)
	require.NoError(t, err)

	// One page holds fifteen 4KiB nodes after the reserved header; the root
	// takes one and each new top-level slot needs two more.
	for i := uint64(0); i < 7; i++ {
		_, err := w.Walk(ctx, handle(t, w.Spec(), i, 0, 0), root, true)
		require.NoError(t, err, "walk %d", i)
	}
	_, err = w.Walk(ctx, handle(t, w.Spec(), 7, 0, 0), root, true)
	assert.ErrorIs(t, err, errors.ErrAllocation)
	assert.NotErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, 14, m.Nodes())

	_, err = w.NewRoot(ctx)
	assert.ErrorIs(t, err, errors.ErrAllocation)
}

func TestWalk_RejectsForeignRoot(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SizeBits = 6
	m := load(t, plan(t, cfg), nil)

	deep, err := m.Dispatch().Lookup(0)
	require.NoError(t, err)
	shallow, err := m.Dispatch().Lookup(39)
	require.NoError(t, err)

	root, err := shallow.NewRoot(ctx)
	require.NoError(t, err)
	_, err = deep.Walk(ctx, 0, root, true)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = deep.Walk(ctx, 0, Root{}, true)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestModule_ConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	m := load(t, plan(t, config.Default()), nil)

	w, err := m.Dispatch().Lookup(1)
	require.NoError(t, err)
	root, err := w.NewRoot(ctx)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	got := make([]uint32, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slot, err := w.Walk(ctx, handle(t, w.Spec(), 1, 1, 1), root, true)
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = slot
		}(i)
	}
	wg.Wait()

	for _, slot := range got {
		assert.Equal(t, got[0], slot)
	}
	assert.Equal(t, 2, m.Nodes())
}
