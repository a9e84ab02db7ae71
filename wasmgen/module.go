package wasmgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/dispatch"
	"github.com/wippyai/handletable/errors"
	"github.com/wippyai/handletable/walker"
	"github.com/wippyai/handletable/wasmgen/internal/memory"
)

// Module is an instantiated set of generated walkers sharing one linear
// memory. The instance is single-threaded; Module serializes every call
// into it, so a Module may be shared between goroutines.
type Module struct {
	mu        sync.Mutex
	runtime   wazero.Runtime
	instance  api.Module
	mem       *memory.Wrapper
	allocFn   api.Function
	heap      api.Global
	dispatch  *dispatch.Table[*Walker]
	plan      *handletable.Plan
	nodeBytes uint32
	roots     int
}

// Load emits p, compiles it with wazero and instantiates it.
func Load(ctx context.Context, p *handletable.Plan, cfg *Config) (*Module, error) {
	code, err := Emit(p, cfg)
	if err != nil {
		return nil, err
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig())
	m, err := instantiate(ctx, rt, code, p)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return m, nil
}

func instantiate(ctx context.Context, rt wazero.Runtime, code []byte, p *handletable.Plan) (*Module, error) {
	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBackend, errors.KindInvalidData, err, "compile generated module")
	}
	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBackend, errors.KindInvalidData, err, "instantiate generated module")
	}

	m := &Module{
		runtime:   rt,
		instance:  instance,
		mem:       memory.Wrap(instance.Memory()),
		allocFn:   instance.ExportedFunction(ExportAllocNode),
		heap:      instance.ExportedGlobal(ExportHeap),
		plan:      p,
		nodeBytes: uint32(p.Config.Fanout() * walker.SlotBytes),
	}
	if m.mem == nil || m.allocFn == nil || m.heap == nil {
		return nil, errors.InvalidData(errors.PhaseBackend, "generated module is missing runtime exports", nil)
	}

	entries := make([]dispatch.Class[*Walker], 0, len(p.Specs))
	for _, s := range p.Feasible() {
		fn := instance.ExportedFunction(s.Name())
		if fn == nil {
			return nil, errors.InvalidData(errors.PhaseBackend,
				fmt.Sprintf("generated module does not export %s", s.Name()), nil)
		}
		entries = append(entries, dispatch.Class[*Walker]{
			Index:    s.Class.Index,
			Walker:   &Walker{m: m, spec: s, fn: fn},
			Feasible: true,
		})
	}
	if m.dispatch, err = dispatch.Build(p.Config, entries); err != nil {
		return nil, err
	}

	Logger().Debug("instantiated wasm walkers",
		zap.Int("walkers", len(entries)),
		zap.Uint32("memory_bytes", m.mem.Size()))
	return m, nil
}

// Close releases the wazero runtime and everything in it.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runtime.Close(ctx)
}

// Plan returns the plan the module was generated from.
func (m *Module) Plan() *handletable.Plan {
	return m.plan
}

// Dispatch returns the size-tag table over this module's walkers.
func (m *Module) Dispatch() *dispatch.Table[*Walker] {
	return m.dispatch
}

// Memory returns the module's linear memory.
func (m *Module) Memory() handletable.Memory {
	return m.mem
}

// ReadEntry reads the 8-byte leaf entry at addr.
func (m *Module) ReadEntry(addr uint32) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem.ReadU64(addr)
}

// WriteEntry stores v in the 8-byte leaf entry at addr.
func (m *Module) WriteEntry(addr uint32, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem.WriteU64(addr, v)
}

// Nodes reports the intermediate nodes allocated by walks, excluding roots.
func (m *Module) Nodes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := uint32(m.heap.Get()) - HeapBase
	return int(used/m.nodeBytes) - m.roots
}

func (m *Module) allocNode(ctx context.Context) (uint32, error) {
	res, err := m.allocFn.Call(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseBackend, errors.KindInvalidData, err, ExportAllocNode)
	}
	addr := uint32(res[0])
	if addr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseBackend,
			fmt.Sprintf("memory.grow refused a %d-byte node", m.nodeBytes), nil)
	}
	return addr, nil
}

// Root is a top-level node in linear memory, owned by the caller.
type Root struct {
	Addr  uint32
	Level int
}

// Walker runs one generated drill function.
type Walker struct {
	m    *Module
	spec *walker.Spec
	fn   api.Function
}

// Spec returns the walk description the function was generated from.
func (w *Walker) Spec() *walker.Spec {
	return w.spec
}

// NewRoot allocates a zeroed top-level node for this walker's class.
func (w *Walker) NewRoot(ctx context.Context) (Root, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	addr, err := w.m.allocNode(ctx)
	if err != nil {
		return Root{}, err
	}
	w.m.roots++
	return Root{Addr: addr, Level: w.spec.Depth() - 1}, nil
}

// Walk descends from top to the leaf slot of h and returns its address.
// Errors mirror the native walker: errors.ErrNotFound for a gap when
// allocate is unset, errors.ErrAllocation when linear memory cannot grow.
func (w *Walker) Walk(ctx context.Context, h uint64, top Root, allocate bool) (uint32, error) {
	if top.Addr < HeapBase || top.Level != w.spec.Depth()-1 {
		return 0, errors.InvalidInput(errors.PhaseWalk,
			fmt.Sprintf("top-level node does not belong to %s", w.spec.Name()))
	}

	var flag uint64
	if allocate {
		flag = 1
	}

	w.m.mu.Lock()
	res, err := w.fn.Call(ctx, h, uint64(top.Addr), flag)
	w.m.mu.Unlock()
	if err != nil {
		return 0, errors.Wrap(errors.PhaseBackend, errors.KindInvalidData, err, w.spec.Name())
	}

	switch addr := uint32(res[0]); addr {
	case StatusNotFound:
		return 0, errors.New(errors.PhaseWalk, errors.KindNotFound).
			Value(h).
			Detail("handle %#x has no mapping", h).
			Build()
	case StatusAllocation:
		return 0, errors.AllocationFailed(errors.PhaseBackend,
			fmt.Sprintf("%s: memory.grow refused a %d-byte node", w.spec.Name(), w.m.nodeBytes), nil)
	default:
		return addr, nil
	}
}
