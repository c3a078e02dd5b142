// Package wasirunner runs core WebAssembly modules as standalone programs on
// top of wazero, providing the WASI preview1 system-call surface.
//
// # Architecture Overview
//
//	wasirunner/          Root package with the guest Memory interface
//	├── runtime/         Load a module, run _start, map the result to an exit code
//	├── engine/          wazero lifecycle, import table, trampolines, memory views
//	├── wasi/preview1/   WASI preview1 syscall semantics over experimental/sys
//	├── resource/        Descriptor table with lowest-free allocation
//	├── errors/          Structured error types
//	└── cmd/run/         The wasirun command
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.WithArgv0("app.wasm"), runtime.WithArgs("hello"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	if err := rt.Load(ctx, wasmBytes); err != nil {
//	    log.Fatal(err)
//	}
//
//	code, err := rt.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(int(code))
//
// # Thread Safety
//
// A Runtime hosts a single module instance. Guest code runs on the calling
// goroutine; every syscall is serialized by the WASI context lock and executed
// on the runtime's executor goroutine.
//
// # Memory Model
//
// Linear memory may grow during any call into the guest. Host code never keeps
// a memory view across two syscalls; each syscall checks out a fresh view.
package wasirunner
