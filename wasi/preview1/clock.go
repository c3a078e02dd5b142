package preview1

import (
	"context"

	wasirunner "github.com/wippyai/wasi-runner"
)

const (
	walltimeResolution = 1000 // 1us
	nanotimeResolution = 1
)

// ClockResGet writes the resolution of clock id in nanoseconds.
func (w *WASI) ClockResGet(_ context.Context, mem wasirunner.Memory, id, result int32) Errno {
	switch uint32(id) {
	case ClockRealtime:
		return putU64(mem, result, walltimeResolution)
	case ClockMonotonic:
		return putU64(mem, result, nanotimeResolution)
	default:
		return ErrnoInval
	}
}

// ClockTimeGet writes the current time of clock id in nanoseconds.
// Precision is advisory and ignored.
func (w *WASI) ClockTimeGet(_ context.Context, mem wasirunner.Memory, id int32, _ int64, result int32) Errno {
	now, errno := w.clockNow(uint32(id))
	if errno != ErrnoSuccess {
		return errno
	}
	return putU64(mem, result, uint64(now))
}

func (w *WASI) clockNow(id uint32) (int64, Errno) {
	switch id {
	case ClockRealtime:
		return w.walltime(), ErrnoSuccess
	case ClockMonotonic:
		return w.nanotime(), ErrnoSuccess
	default:
		return 0, ErrnoInval
	}
}
