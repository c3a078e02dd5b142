package engine

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	wasirunner "github.com/wippyai/wasi-runner"
	"github.com/wippyai/wasi-runner/errors"
)

// MemoryView is a bounds-checked view over the calling module's linear memory.
// A view lives for one host call: it is checked out when the call starts and
// released when it returns. Every access through a released view fails.
type MemoryView struct {
	buf      []byte
	size     uint32
	released bool
}

// checkout captures the current memory of mod. A module without memory
// yields an empty view.
func checkout(mod api.Module) *MemoryView {
	v := &MemoryView{}
	if mod == nil {
		return v
	}
	mem := mod.Memory()
	if mem == nil {
		return v
	}
	size := mem.Size()
	if buf, ok := mem.Read(0, size); ok {
		v.buf = buf
		v.size = size
	}
	return v
}

// newMemoryView wraps buf directly.
func newMemoryView(buf []byte) *MemoryView {
	return &MemoryView{buf: buf, size: uint32(len(buf))}
}

func (v *MemoryView) release() {
	v.buf = nil
	v.released = true
}

// Size returns the size of the view in bytes, or 0 once released.
func (v *MemoryView) Size() uint32 {
	if v.released {
		return 0
	}
	return v.size
}

func (v *MemoryView) bounds(offset, length uint32) error {
	if v.released {
		return errors.Closed(errors.PhaseSyscall, "memory view")
	}
	if uint64(offset)+uint64(length) > uint64(v.size) {
		return errors.OutOfBounds(errors.PhaseSyscall, offset, length, v.size)
	}
	return nil
}

// Read returns length bytes at offset. The slice aliases guest memory.
func (v *MemoryView) Read(offset, length uint32) ([]byte, error) {
	if err := v.bounds(offset, length); err != nil {
		return nil, err
	}
	return v.buf[offset : offset+length : offset+length], nil
}

func (v *MemoryView) Write(offset uint32, data []byte) error {
	if err := v.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(v.buf[offset:], data)
	return nil
}

func (v *MemoryView) ReadU8(offset uint32) (uint8, error) {
	if err := v.bounds(offset, 1); err != nil {
		return 0, err
	}
	return v.buf[offset], nil
}

func (v *MemoryView) ReadU16(offset uint32) (uint16, error) {
	if err := v.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v.buf[offset:]), nil
}

func (v *MemoryView) ReadU32(offset uint32) (uint32, error) {
	if err := v.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.buf[offset:]), nil
}

func (v *MemoryView) ReadU64(offset uint32) (uint64, error) {
	if err := v.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v.buf[offset:]), nil
}

func (v *MemoryView) WriteU8(offset uint32, value uint8) error {
	if err := v.bounds(offset, 1); err != nil {
		return err
	}
	v.buf[offset] = value
	return nil
}

func (v *MemoryView) WriteU16(offset uint32, value uint16) error {
	if err := v.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(v.buf[offset:], value)
	return nil
}

func (v *MemoryView) WriteU32(offset uint32, value uint32) error {
	if err := v.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(v.buf[offset:], value)
	return nil
}

func (v *MemoryView) WriteU64(offset uint32, value uint64) error {
	if err := v.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(v.buf[offset:], value)
	return nil
}

// Compile-time check that MemoryView implements wasirunner.Memory and MemorySizer
var _ wasirunner.Memory = (*MemoryView)(nil)
var _ wasirunner.MemorySizer = (*MemoryView)(nil)
