package preview1

import (
	"context"

	wasirunner "github.com/wippyai/wasi-runner"
)

// ArgsGet writes argv pointers to argv and the NUL-terminated strings to argvBuf.
func (w *WASI) ArgsGet(_ context.Context, mem wasirunner.Memory, argv, argvBuf int32) Errno {
	return writeStrings(mem, w.args, uint32(argv), uint32(argvBuf))
}

// ArgsSizesGet writes the argument count and the total buffer size.
func (w *WASI) ArgsSizesGet(_ context.Context, mem wasirunner.Memory, argc, argvBufSize int32) Errno {
	return writeSizes(mem, w.args, argc, argvBufSize)
}

// EnvironGet writes environ pointers and the NUL-terminated KEY=VALUE strings.
func (w *WASI) EnvironGet(_ context.Context, mem wasirunner.Memory, environ, environBuf int32) Errno {
	return writeStrings(mem, w.env, uint32(environ), uint32(environBuf))
}

// EnvironSizesGet writes the variable count and the total buffer size.
func (w *WASI) EnvironSizesGet(_ context.Context, mem wasirunner.Memory, count, bufSize int32) Errno {
	return writeSizes(mem, w.env, count, bufSize)
}

func writeSizes(mem wasirunner.Memory, values []string, countPtr, sizePtr int32) Errno {
	size := 0
	for _, v := range values {
		size += len(v) + 1
	}
	if errno := putU32(mem, countPtr, uint32(len(values))); errno != ErrnoSuccess {
		return errno
	}
	return putU32(mem, sizePtr, uint32(size))
}

func writeStrings(mem wasirunner.Memory, values []string, ptrs, buf uint32) Errno {
	if _, ok := span(ptrs, uint32(len(values)), 4); !ok {
		return ErrnoFault
	}
	for i, v := range values {
		if err := mem.WriteU32(ptrs+uint32(i)*4, buf); err != nil {
			return ErrnoFault
		}
		b := make([]byte, len(v)+1)
		copy(b, v)
		if err := mem.Write(buf, b); err != nil {
			return ErrnoFault
		}
		buf += uint32(len(b))
	}
	return ErrnoSuccess
}
