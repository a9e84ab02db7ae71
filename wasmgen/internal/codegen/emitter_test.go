package codegen

import (
	"bytes"
	"testing"
)

func TestEmitter_NewAndBytes(t *testing.T) {
	e := NewEmitter()
	if e.Len() != 0 {
		t.Errorf("new emitter should be empty, got len %d", e.Len())
	}

	e.I32Const(42)
	if !bytes.Equal(e.Bytes(), []byte{OpI32Const, 42}) {
		t.Errorf("I32Const(42) = %x", e.Bytes())
	}
}

func TestEmitter_Encodings(t *testing.T) {
	tests := []struct {
		emit func(e *Emitter)
		name string
		want []byte
	}{
		{
			name: "block void",
			emit: func(e *Emitter) { e.Block(BlockVoid).End() },
			want: []byte{OpBlock, 0x40, OpEnd},
		},
		{
			name: "if i32",
			emit: func(e *Emitter) { e.If(BlockI32).I32Const(1).Else().I32Const(0).End() },
			want: []byte{OpIf, 0x7f, OpI32Const, 1, OpElse, OpI32Const, 0, OpEnd},
		},
		{
			name: "loop br",
			emit: func(e *Emitter) { e.Loop(BlockVoid).Br(0).End() },
			want: []byte{OpLoop, 0x40, OpBr, 0, OpEnd},
		},
		{
			name: "locals",
			emit: func(e *Emitter) { e.LocalGet(0).LocalTee(200).LocalSet(3) },
			want: []byte{OpLocalGet, 0, OpLocalTee, 0xc8, 0x01, OpLocalSet, 3},
		},
		{
			name: "globals",
			emit: func(e *Emitter) { e.GlobalGet(0).GlobalSet(0) },
			want: []byte{OpGlobalGet, 0, OpGlobalSet, 0},
		},
		{
			name: "negative const",
			emit: func(e *Emitter) { e.I32Const(-1) },
			want: []byte{OpI32Const, 0x7f},
		},
		{
			name: "i64 mask",
			emit: func(e *Emitter) { e.I64Const(511) },
			want: []byte{OpI64Const, 0xff, 0x03},
		},
		{
			name: "memory",
			emit: func(e *Emitter) { e.I64Load(3, 0).I64Store(3, 8).MemorySize().MemoryGrow() },
			want: []byte{OpI64Load, 3, 0, OpI64Store, 3, 8, OpMemorySize, 0, OpMemoryGrow, 0},
		},
		{
			name: "call return",
			emit: func(e *Emitter) { e.Call(0).Drop().Return() },
			want: []byte{OpCall, 0, OpDrop, OpReturn},
		},
		{
			name: "index extraction",
			emit: func(e *Emitter) {
				e.LocalGet(0).I64Const(24).I64ShrU().I64Const(511).I64And().I32WrapI64().
					I32Const(3).I32Shl()
			},
			want: []byte{
				OpLocalGet, 0, OpI64Const, 24, OpI64ShrU, OpI64Const, 0xff, 0x03, OpI64And,
				OpI32WrapI64, OpI32Const, 3, OpI32Shl,
			},
		},
		{
			name: "arithmetic",
			emit: func(e *Emitter) {
				e.I32Add().I32Sub().I32ShrU().I32Eq().I32Eqz().I32GtS().I64ExtendI32U().Unreachable()
			},
			want: []byte{OpI32Add, OpI32Sub, OpI32ShrU, OpI32Eq, OpI32Eqz, OpI32GtS, OpI64ExtendI32, OpUnreachable},
		},
		{
			name: "br_if",
			emit: func(e *Emitter) { e.BrIf(2) },
			want: []byte{OpBrIf, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter()
			tt.emit(e)
			if !bytes.Equal(e.Bytes(), tt.want) {
				t.Errorf("got %x, want %x", e.Bytes(), tt.want)
			}
		})
	}
}
