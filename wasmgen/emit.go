package wasmgen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/errors"
	"github.com/wippyai/handletable/walker"
	"github.com/wippyai/handletable/wasmgen/internal/binary"
	"github.com/wippyai/handletable/wasmgen/internal/codegen"
)

// Exported symbols of a generated module besides the drill_<n> walkers.
const (
	ExportMemory    = "memory"
	ExportHeap      = "heap"
	ExportAllocNode = "alloc_node"
)

// Walk results below HeapBase are status codes, never slot addresses.
const (
	StatusNotFound   = 0
	StatusAllocation = 1
	HeapBase         = 16
)

const (
	// DefaultMaxPages caps linear memory at 256MiB.
	DefaultMaxPages = 4096
	// MaxPages keeps every address and page computation within a signed i32.
	MaxPages = 32768
	// MaxNodeBytes bounds the node size the backend will emit.
	MaxNodeBytes = 1 << 20
)

// Config holds configuration for module emission.
type Config struct {
	// MaxPages caps linear memory in 64KiB pages. 0 means DefaultMaxPages.
	MaxPages uint32
}

func (c *Config) maxPages() (uint32, error) {
	if c == nil || c.MaxPages == 0 {
		return DefaultMaxPages, nil
	}
	if c.MaxPages > MaxPages {
		return 0, errors.InvalidInput(errors.PhaseBackend,
			fmt.Sprintf("max pages %d exceeds %d", c.MaxPages, MaxPages))
	}
	return c.MaxPages, nil
}

// function and type indices inside the generated module
const (
	typeAllocNode = 0
	typeDrill     = 1
	funcAllocNode = 0
	globalHeap    = 0
)

// drill locals: three parameters, then three i32 scratch locals
const (
	localAddr  = 0
	localTop   = 1
	localAlloc = 2
	localCur   = 3
	localSlot  = 4
	localNext  = 5
)

// alloc_node locals
const (
	localPtr   = 0
	localDelta = 1
)

// Emit encodes the feasible classes of p as a core WebAssembly module.
//
// The module exports its memory, the bump pointer global "heap", a node
// allocator "alloc_node" and one walker per supported class. Walkers have
// the signature (addr i64, top i32, allocate i32) -> i32 and return the
// address of the 8-byte leaf slot, StatusNotFound or StatusAllocation.
// Slots hold the child node address zero-extended to 64 bits.
func Emit(p *handletable.Plan, cfg *Config) ([]byte, error) {
	pages, err := cfg.maxPages()
	if err != nil {
		return nil, err
	}
	nodeBytes := p.Config.Fanout() * walker.SlotBytes
	if nodeBytes > MaxNodeBytes {
		return nil, errors.Unsupported(errors.PhaseBackend,
			fmt.Sprintf("%d-byte nodes exceed the %d-byte backend limit", nodeBytes, MaxNodeBytes))
	}
	if uint64(nodeBytes)+HeapBase > uint64(pages)*binary.PageSize {
		return nil, errors.InvalidInput(errors.PhaseBackend,
			fmt.Sprintf("%d pages cannot hold a single %d-byte node", pages, nodeBytes))
	}

	specs := p.Feasible()
	w := binary.NewWriter()
	w.Header()

	w.Section(binary.SectionType, func(s *binary.Writer) {
		s.WriteU32(2)
		// () -> i32
		s.Byte(binary.FuncTypeForm)
		s.Vec(0, nil)
		s.Vec(1, func(int) { s.Byte(binary.ValI32) })
		// (i64, i32, i32) -> i32
		s.Byte(binary.FuncTypeForm)
		params := []byte{binary.ValI64, binary.ValI32, binary.ValI32}
		s.Vec(len(params), func(i int) { s.Byte(params[i]) })
		s.Vec(1, func(int) { s.Byte(binary.ValI32) })
	})

	w.Section(binary.SectionFunction, func(s *binary.Writer) {
		s.WriteU32(uint32(1 + len(specs)))
		s.WriteU32(typeAllocNode)
		for range specs {
			s.WriteU32(typeDrill)
		}
	})

	w.Section(binary.SectionMemory, func(s *binary.Writer) {
		s.WriteU32(1)
		s.Byte(binary.LimitsMinMax)
		s.WriteU32(1)
		s.WriteU32(pages)
	})

	w.Section(binary.SectionGlobal, func(s *binary.Writer) {
		s.WriteU32(1)
		s.Byte(binary.ValI32)
		s.Byte(binary.GlobalVar)
		init := codegen.NewEmitter().I32Const(HeapBase).End()
		s.WriteBytes(init.Bytes())
	})

	w.Section(binary.SectionExport, func(s *binary.Writer) {
		s.WriteU32(uint32(3 + len(specs)))
		s.WriteName(ExportMemory)
		s.Byte(binary.KindMemory)
		s.WriteU32(0)
		s.WriteName(ExportHeap)
		s.Byte(binary.KindGlobal)
		s.WriteU32(globalHeap)
		s.WriteName(ExportAllocNode)
		s.Byte(binary.KindFunc)
		s.WriteU32(funcAllocNode)
		for i, spec := range specs {
			s.WriteName(spec.Name())
			s.Byte(binary.KindFunc)
			s.WriteU32(uint32(1 + i))
		}
	})

	w.Section(binary.SectionCode, func(s *binary.Writer) {
		s.WriteU32(uint32(1 + len(specs)))
		body(s, 2, allocNode(int32(nodeBytes)))
		for _, spec := range specs {
			body(s, 3, drill(spec))
		}
	})

	Logger().Debug("emitted wasm walkers",
		zap.Int("classes", len(specs)),
		zap.Int("node_bytes", nodeBytes),
		zap.Int("bytes", w.Len()))
	return w.Bytes(), nil
}

// body writes a function body with n i32 locals.
func body(s *binary.Writer, n uint32, code *codegen.Emitter) {
	b := binary.NewWriter()
	b.WriteU32(1)
	b.WriteU32(n)
	b.Byte(binary.ValI32)
	b.WriteBytes(code.Bytes())
	s.WriteU32(uint32(b.Len()))
	s.WriteBytes(b.Bytes())
}

// allocNode bumps heap by one node, growing memory as needed. Fresh pages
// are zeroed and never reused, so the node starts with all slots empty.
// Returns 0 when memory cannot grow.
func allocNode(nodeBytes int32) *codegen.Emitter {
	e := codegen.NewEmitter()
	e.GlobalGet(globalHeap).LocalSet(localPtr)

	// delta = ceil((ptr + node) / page) - memory.size
	e.LocalGet(localPtr).I32Const(nodeBytes).I32Add().
		I32Const(binary.PageSize - 1).I32Add().
		I32Const(16).I32ShrU().
		MemorySize().I32Sub().
		LocalTee(localDelta).
		I32Const(0).I32GtS()
	e.If(codegen.BlockVoid)
	e.LocalGet(localDelta).MemoryGrow().I32Const(-1).I32Eq()
	e.If(codegen.BlockVoid).I32Const(0).Return().End()
	e.End()

	e.LocalGet(localPtr).I32Const(nodeBytes).I32Add().GlobalSet(globalHeap)
	e.LocalGet(localPtr)
	return e.End()
}

// slotAddr leaves cur + index(addr)*8 on the stack.
func slotAddr(e *codegen.Emitter, lv walker.Level) {
	e.LocalGet(localCur).
		LocalGet(localAddr).I64Const(int64(lv.Shift)).I64ShrU().
		I64Const(int64(lv.Mask)).I64And().I32WrapI64().
		I32Const(3).I32Shl().
		I32Add()
}

// drill is the walk of spec: read each interior slot, publish a fresh node
// into an empty one when allocating, and return the leaf slot address.
func drill(spec *walker.Spec) *codegen.Emitter {
	e := codegen.NewEmitter()
	e.LocalGet(localTop).LocalSet(localCur)

	inner := spec.Levels[:len(spec.Levels)-1]
	for _, lv := range inner {
		slotAddr(e, lv)
		e.LocalTee(localSlot).
			I64Load(3, 0).I32WrapI64().
			LocalTee(localNext).
			I32Eqz()
		e.If(codegen.BlockVoid)
		{
			e.LocalGet(localAlloc).I32Eqz()
			e.If(codegen.BlockVoid).I32Const(StatusNotFound).Return().End()

			e.Call(funcAllocNode).LocalTee(localNext).I32Eqz()
			e.If(codegen.BlockVoid).I32Const(StatusAllocation).Return().End()

			e.LocalGet(localSlot).LocalGet(localNext).I64ExtendI32U().I64Store(3, 0)
		}
		e.End()
		e.LocalGet(localNext).LocalSet(localCur)
	}

	slotAddr(e, spec.Levels[len(spec.Levels)-1])
	return e.End()
}
