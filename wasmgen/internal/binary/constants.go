package binary

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs used by generated modules, in the order they must appear.
const (
	SectionType     byte = 1  // Type section (function signatures)
	SectionFunction byte = 3  // Function section (type indices)
	SectionMemory   byte = 5  // Memory section
	SectionGlobal   byte = 6  // Global section
	SectionExport   byte = 7  // Export section
	SectionCode     byte = 10 // Code section (function bodies)
)

// Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
	KindGlobal byte = 3
)

// ValType is a value type encoding.
type ValType = byte

// Value types.
const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
)

// FuncTypeForm introduces a function type in the type section.
const FuncTypeForm byte = 0x60

// Limits flags for memory declarations.
const (
	LimitsMin    byte = 0x00
	LimitsMinMax byte = 0x01
)

// Global mutability.
const (
	GlobalConst byte = 0x00
	GlobalVar   byte = 0x01
)

// PageSize is the WebAssembly linear memory page size.
const PageSize = 1 << 16
