// Package memory adapts wazero linear memory to handletable.Memory.
package memory

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/handletable"
	"github.com/wippyai/handletable/errors"
)

// Wrap wraps a wazero api.Memory. It returns nil for a nil memory.
func Wrap(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

var (
	_ handletable.Memory      = (*Wrapper)(nil)
	_ handletable.MemorySizer = (*Wrapper)(nil)
)

// Wrapper adapts wazero api.Memory to handletable.Memory.
type Wrapper struct {
	Mem api.Memory
}

func (m *Wrapper) outOfBounds(offset uint32, length uint32) error {
	return errors.New(errors.PhaseBackend, errors.KindOutOfBounds).
		Value(offset).
		Detail("memory access offset=%d length=%d beyond %d bytes", offset, length, m.Mem.Size()).
		Build()
}

// Read reads bytes from memory. The slice aliases linear memory.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds(offset, length)
	}
	return data, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return v, nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return m.outOfBounds(offset, 8)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// String describes the memory for log fields.
func (m *Wrapper) String() string {
	return fmt.Sprintf("memory(%d bytes)", m.Mem.Size())
}
