package preview1

import (
	"context"
	"io"
	"runtime"

	wasirunner "github.com/wippyai/wasi-runner"
)

// ProcRaise is not supported: the host has no signal delivery.
func (w *WASI) ProcRaise(_ context.Context, _ wasirunner.Memory, _ int32) Errno {
	return ErrnoNosys
}

// SchedYield yields the host goroutine.
func (w *WASI) SchedYield(_ context.Context, _ wasirunner.Memory) Errno {
	runtime.Gosched()
	return ErrnoSuccess
}

// RandomGet fills buf with bufLen bytes from the random source.
func (w *WASI) RandomGet(_ context.Context, mem wasirunner.Memory, buf, bufLen int32) Errno {
	if _, err := mem.Read(uint32(buf), uint32(bufLen)); err != nil {
		return ErrnoFault
	}
	b := make([]byte, uint32(bufLen))
	if _, err := io.ReadFull(w.random, b); err != nil {
		return ErrnoIo
	}
	return putBytes(mem, uint32(buf), b)
}
