// Package preview1 implements the WASI preview1 (wasi_snapshot_preview1)
// system calls against real host resources.
//
// Each exported method corresponds to one preview1 function. Methods take a
// guest memory view and the call's integer arguments exactly as the guest
// passed them, and return an Errno. Pointers are offsets into the view; any
// pointer or length outside it yields ErrnoFault rather than a host failure.
//
//	w := preview1.New().
//		WithArgs("app.wasm", "-v").
//		WithEnv(map[string]string{"HOME": "/"}).
//		WithStdout(os.Stdout).
//		WithDir(".", "/", false)
//	defer w.Close()
//
//	errno := w.FdWrite(ctx, mem, 1, iovs, 1, nwrittenPtr)
//
// # Descriptors
//
// Descriptors 0, 1 and 2 are stdio. Preopened directories follow in the
// order they were added, then preopened listeners. New descriptors take the
// lowest free number.
//
// # Filesystem
//
// Mounts are wazero experimental/sys filesystems. Paths are resolved relative
// to the directory descriptor and may not leave the mount; absolute paths and
// ".." escapes fail with ErrnoNotcapable. Read-only mounts use sysfs.ReadFS
// and fail writes with ErrnoRofs.
//
// # Rights
//
// Every descriptor reports full rights except terminals, which lack seek and
// tell. Rights can be narrowed by fd_fdstat_set_rights but are not enforced.
package preview1
