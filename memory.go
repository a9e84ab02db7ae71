package handletable

// Memory is linear memory holding a compiled table: nodes of 8-byte slots
// and the leaf entries they lead to.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}
