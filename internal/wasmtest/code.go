package wasmtest

import (
	"encoding/binary"
	"math"
)

// Ops concatenates instruction encodings.
func Ops(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func Unreachable() []byte { return []byte{0x00} }
func Drop() []byte        { return []byte{0x1a} }
func End() []byte         { return []byte{0x0b} }
func Return() []byte      { return []byte{0x0f} }

func Call(idx uint32) []byte {
	return appendU32([]byte{0x10}, idx)
}

func LocalGet(idx uint32) []byte {
	return appendU32([]byte{0x20}, idx)
}

func LocalSet(idx uint32) []byte {
	return appendU32([]byte{0x21}, idx)
}

func I32Const(v int32) []byte {
	return appendS64([]byte{0x41}, int64(v))
}

func I64Const(v int64) []byte {
	return appendS64([]byte{0x42}, v)
}

func F32Const(v float32) []byte {
	return binary.LittleEndian.AppendUint32([]byte{0x43}, math.Float32bits(v))
}

func F64Const(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{0x44}, math.Float64bits(v))
}

// I32Load loads an i32 from the address on the stack plus offset.
func I32Load(offset uint32) []byte {
	return appendU32([]byte{0x28, 0x02}, offset)
}

// I32Store stores an i32 at the address on the stack plus offset.
func I32Store(offset uint32) []byte {
	return appendU32([]byte{0x36, 0x02}, offset)
}

// I32Add adds the two i32 values on the stack.
func I32Add() []byte { return []byte{0x6a} }

// I32Eqz tests the i32 on the stack for zero.
func I32Eqz() []byte { return []byte{0x45} }

// If opens a block without results that runs when the i32 on the stack is non-zero.
func If() []byte { return []byte{0x04, 0x40} }

// Loop opens a loop block without results.
func Loop() []byte { return []byte{0x03, 0x40} }

// Br branches to the enclosing block at depth.
func Br(depth uint32) []byte {
	return appendU32([]byte{0x0c}, depth)
}

// MemoryGrow grows memory 0 by the page count on the stack and pushes the
// previous size in pages.
func MemoryGrow() []byte { return []byte{0x40, 0x00} }
