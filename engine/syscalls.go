package engine

import (
	"context"

	wasirunner "github.com/wippyai/wasi-runner"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// Call forwards narrowed arguments to the preview1 implementation.
type Call func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno

// Syscall describes one import of the wasi_snapshot_preview1 namespace.
type Syscall struct {
	Call         Call // nil for proc_exit, which never returns to the guest
	Name         string
	Params       []ValueKind
	ReturnsErrno bool
}

func syscall(name string, call Call, params ...ValueKind) Syscall {
	return Syscall{Name: name, Params: params, Call: call, ReturnsErrno: true}
}

const (
	i32 = KindI32
	i64 = KindI64
)

// ProcExit is the only import that does not return an errno.
const ProcExit = "proc_exit"

var syscalls = []Syscall{
	syscall("args_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.ArgsGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("args_sizes_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.ArgsSizesGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("environ_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.EnvironGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("environ_sizes_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.EnvironSizesGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("clock_res_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.ClockResGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("clock_time_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.ClockTimeGet(ctx, mem, a.I32(0), a.I64(1), a.I32(2))
	}, i32, i64, i32),
	syscall("fd_advise", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdAdvise(ctx, mem, a.I32(0), a.I64(1), a.I64(2), a.I32(3))
	}, i32, i64, i64, i32),
	syscall("fd_allocate", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdAllocate(ctx, mem, a.I32(0), a.I64(1), a.I64(2))
	}, i32, i64, i64),
	syscall("fd_close", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdClose(ctx, mem, a.I32(0))
	}, i32),
	syscall("fd_datasync", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdDatasync(ctx, mem, a.I32(0))
	}, i32),
	syscall("fd_fdstat_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdFdstatGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("fd_fdstat_set_flags", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdFdstatSetFlags(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("fd_fdstat_set_rights", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdFdstatSetRights(ctx, mem, a.I32(0), a.I64(1), a.I64(2))
	}, i32, i64, i64),
	syscall("fd_filestat_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdFilestatGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("fd_filestat_set_size", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdFilestatSetSize(ctx, mem, a.I32(0), a.I64(1))
	}, i32, i64),
	syscall("fd_filestat_set_times", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdFilestatSetTimes(ctx, mem, a.I32(0), a.I64(1), a.I64(2), a.I32(3))
	}, i32, i64, i64, i32),
	syscall("fd_pread", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdPread(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I64(3), a.I32(4))
	}, i32, i32, i32, i64, i32),
	syscall("fd_prestat_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdPrestatGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("fd_prestat_dir_name", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdPrestatDirName(ctx, mem, a.I32(0), a.I32(1), a.I32(2))
	}, i32, i32, i32),
	syscall("fd_pwrite", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdPwrite(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I64(3), a.I32(4))
	}, i32, i32, i32, i64, i32),
	syscall("fd_read", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdRead(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3))
	}, i32, i32, i32, i32),
	syscall("fd_readdir", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdReaddir(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I64(3), a.I32(4))
	}, i32, i32, i32, i64, i32),
	syscall("fd_renumber", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdRenumber(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("fd_seek", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdSeek(ctx, mem, a.I32(0), a.I64(1), a.I32(2), a.I32(3))
	}, i32, i64, i32, i32),
	syscall("fd_sync", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdSync(ctx, mem, a.I32(0))
	}, i32),
	syscall("fd_tell", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdTell(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("fd_write", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.FdWrite(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3))
	}, i32, i32, i32, i32),
	syscall("path_create_directory", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathCreateDirectory(ctx, mem, a.I32(0), a.I32(1), a.I32(2))
	}, i32, i32, i32),
	syscall("path_filestat_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathFilestatGet(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4))
	}, i32, i32, i32, i32, i32),
	syscall("path_filestat_set_times", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathFilestatSetTimes(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I64(4), a.I64(5), a.I32(6))
	}, i32, i32, i32, i32, i64, i64, i32),
	syscall("path_link", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathLink(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4), a.I32(5), a.I32(6))
	}, i32, i32, i32, i32, i32, i32, i32),
	syscall("path_open", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathOpen(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4), a.I64(5), a.I64(6), a.I32(7), a.I32(8))
	}, i32, i32, i32, i32, i32, i64, i64, i32, i32),
	syscall("path_readlink", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathReadlink(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4), a.I32(5))
	}, i32, i32, i32, i32, i32, i32),
	syscall("path_remove_directory", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathRemoveDirectory(ctx, mem, a.I32(0), a.I32(1), a.I32(2))
	}, i32, i32, i32),
	syscall("path_rename", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathRename(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4), a.I32(5))
	}, i32, i32, i32, i32, i32, i32),
	syscall("path_symlink", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathSymlink(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4))
	}, i32, i32, i32, i32, i32),
	syscall("path_unlink_file", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PathUnlinkFile(ctx, mem, a.I32(0), a.I32(1), a.I32(2))
	}, i32, i32, i32),
	syscall("poll_oneoff", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.PollOneoff(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3))
	}, i32, i32, i32, i32),
	{Name: ProcExit, Params: []ValueKind{i32}},
	syscall("proc_raise", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.ProcRaise(ctx, mem, a.I32(0))
	}, i32),
	syscall("random_get", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.RandomGet(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
	syscall("sched_yield", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, _ Args) preview1.Errno {
		return w.SchedYield(ctx, mem)
	}),
	syscall("sock_accept", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.SockAccept(ctx, mem, a.I32(0), a.I32(1), a.I32(2))
	}, i32, i32, i32),
	syscall("sock_recv", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.SockRecv(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4), a.I32(5))
	}, i32, i32, i32, i32, i32, i32),
	syscall("sock_send", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.SockSend(ctx, mem, a.I32(0), a.I32(1), a.I32(2), a.I32(3), a.I32(4))
	}, i32, i32, i32, i32, i32),
	syscall("sock_shutdown", func(ctx context.Context, w *preview1.WASI, mem wasirunner.Memory, a Args) preview1.Errno {
		return w.SockShutdown(ctx, mem, a.I32(0), a.I32(1))
	}, i32, i32),
}

// Syscalls returns a copy of the preview1 import descriptors.
func Syscalls() []Syscall {
	out := make([]Syscall, len(syscalls))
	copy(out, syscalls)
	return out
}
