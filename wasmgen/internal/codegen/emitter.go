package codegen

import (
	"github.com/wippyai/handletable/wasmgen/internal/binary"
)

// Emitter appends WebAssembly instructions to a function body.
// Methods return the emitter so sequences can be chained.
type Emitter struct {
	w *binary.Writer
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{w: binary.NewWriter()}
}

// Bytes returns the emitted code. The slice is reused by later writes.
func (e *Emitter) Bytes() []byte {
	return e.w.Bytes()
}

// Len returns the number of bytes emitted.
func (e *Emitter) Len() int {
	return e.w.Len()
}

func (e *Emitter) op(b byte) *Emitter {
	e.w.Byte(b)
	return e
}

func (e *Emitter) opU32(b byte, imm uint32) *Emitter {
	e.w.Byte(b)
	e.w.WriteU32(imm)
	return e
}

func (e *Emitter) opBlock(b byte, bt int32) *Emitter {
	e.w.Byte(b)
	e.w.WriteS32(bt)
	return e
}

func (e *Emitter) opMem(b byte, align, offset uint32) *Emitter {
	e.w.Byte(b)
	e.w.WriteU32(align)
	e.w.WriteU32(offset)
	return e
}

// Control flow

func (e *Emitter) Unreachable() *Emitter { return e.op(OpUnreachable) }
func (e *Emitter) Block(bt int32) *Emitter { return e.opBlock(OpBlock, bt) }
func (e *Emitter) Loop(bt int32) *Emitter { return e.opBlock(OpLoop, bt) }
func (e *Emitter) If(bt int32) *Emitter { return e.opBlock(OpIf, bt) }
func (e *Emitter) Else() *Emitter { return e.op(OpElse) }
func (e *Emitter) End() *Emitter { return e.op(OpEnd) }
func (e *Emitter) Br(depth uint32) *Emitter { return e.opU32(OpBr, depth) }
func (e *Emitter) BrIf(depth uint32) *Emitter { return e.opU32(OpBrIf, depth) }
func (e *Emitter) Return() *Emitter { return e.op(OpReturn) }
func (e *Emitter) Call(fn uint32) *Emitter { return e.opU32(OpCall, fn) }
func (e *Emitter) Drop() *Emitter { return e.op(OpDrop) }

// Variables

func (e *Emitter) LocalGet(idx uint32) *Emitter { return e.opU32(OpLocalGet, idx) }
func (e *Emitter) LocalSet(idx uint32) *Emitter { return e.opU32(OpLocalSet, idx) }
func (e *Emitter) LocalTee(idx uint32) *Emitter { return e.opU32(OpLocalTee, idx) }
func (e *Emitter) GlobalGet(idx uint32) *Emitter { return e.opU32(OpGlobalGet, idx) }
func (e *Emitter) GlobalSet(idx uint32) *Emitter { return e.opU32(OpGlobalSet, idx) }

// Memory. align is log2 of the access alignment.

func (e *Emitter) I64Load(align, offset uint32) *Emitter {
	return e.opMem(OpI64Load, align, offset)
}

func (e *Emitter) I64Store(align, offset uint32) *Emitter {
	return e.opMem(OpI64Store, align, offset)
}

func (e *Emitter) MemorySize() *Emitter {
	e.w.Byte(OpMemorySize)
	e.w.Byte(0x00)
	return e
}

func (e *Emitter) MemoryGrow() *Emitter {
	e.w.Byte(OpMemoryGrow)
	e.w.Byte(0x00)
	return e
}

// Numeric

func (e *Emitter) I32Const(v int32) *Emitter {
	e.w.Byte(OpI32Const)
	e.w.WriteS32(v)
	return e
}

func (e *Emitter) I64Const(v int64) *Emitter {
	e.w.Byte(OpI64Const)
	e.w.WriteS64(v)
	return e
}

func (e *Emitter) I32Eqz() *Emitter { return e.op(OpI32Eqz) }
func (e *Emitter) I32Eq() *Emitter { return e.op(OpI32Eq) }
func (e *Emitter) I32GtS() *Emitter { return e.op(OpI32GtS) }
func (e *Emitter) I32Add() *Emitter { return e.op(OpI32Add) }
func (e *Emitter) I32Sub() *Emitter { return e.op(OpI32Sub) }
func (e *Emitter) I32Shl() *Emitter { return e.op(OpI32Shl) }
func (e *Emitter) I32ShrU() *Emitter { return e.op(OpI32ShrU) }
func (e *Emitter) I64And() *Emitter { return e.op(OpI64And) }
func (e *Emitter) I64ShrU() *Emitter { return e.op(OpI64ShrU) }
func (e *Emitter) I32WrapI64() *Emitter { return e.op(OpI32WrapI64) }
func (e *Emitter) I64ExtendI32U() *Emitter { return e.op(OpI64ExtendI32) }
