package codegen

// Block type constants
const (
	BlockVoid int32 = -64 // 0x40
	BlockI32  int32 = -1  // 0x7F
	BlockI64  int32 = -2  // 0x7E
)

// Control flow opcodes
const (
	OpUnreachable byte = 0x00
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
)

// Variable opcodes
const (
	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
)

// Memory opcodes
const (
	OpI64Load    byte = 0x29
	OpI64Store   byte = 0x37
	OpMemorySize byte = 0x3F
	OpMemoryGrow byte = 0x40
)

// Numeric opcodes
const (
	OpI32Const     byte = 0x41
	OpI64Const     byte = 0x42
	OpI32Eqz       byte = 0x45
	OpI32Eq        byte = 0x46
	OpI32GtS       byte = 0x4A
	OpI32Add       byte = 0x6A
	OpI32Sub       byte = 0x6B
	OpI32Shl       byte = 0x74
	OpI32ShrU      byte = 0x76
	OpI64And       byte = 0x83
	OpI64ShrU      byte = 0x88
	OpI32WrapI64   byte = 0xA7
	OpI64ExtendI32 byte = 0xAD // i64.extend_i32_u
)
