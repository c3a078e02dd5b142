// Package engine binds the WASI preview1 implementation to wazero.
//
// # Architecture
//
//	Engine      - owns the wazero runtime and optional compilation cache
//	ImportTable - the 46 wasi_snapshot_preview1 functions, built once
//	Context     - the shared WASI state behind a mutex
//	Executor    - a single worker goroutine that runs every host call
//
// # Call Path
//
// Each import is a trampoline registered as an api.GoModuleFunc:
//
//  1. The raw stack words are narrowed to the declared argument kinds.
//     An i32 keeps the low 32 bits; an i64 keeps all 64.
//  2. A MemoryView over the caller's linear memory is checked out.
//  3. The call runs on the Executor while holding the Context lock.
//  4. The view is released and the errno is written back to the stack.
//
// A narrowing failure is reported to the guest as EINVAL. Any other host
// failure traps the guest.
//
// # proc_exit
//
// proc_exit hands the code to an ExitFunc, by default OSExit. If the hook
// returns, the module is closed and the guest unwinds with a sys.ExitError.
//
// # Imports
//
// Before instantiation every function import outside the table and every
// memory import is collected and reported together as a
// MissingImportsError.
package engine
