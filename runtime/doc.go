// Package runtime runs a WASI preview1 command module to completion.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, runtime.WithArgs("input.txt"))
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
//
// # Configuration
//
// New starts from DefaultConfig: host stdio, the whole host environment,
// argv[0] "this.wasm" and the working directory preopened as "/". Options
// adjust it; the result is validated before anything is opened. The same
// Config can be read from a JSON file with LoadConfig, and Schema describes
// that file.
//
// # Exit Codes
//
//	_start returns nothing      0
//	_start returns i32 or i64   low 32 bits, signed
//	_start returns f32 or f64   ECMAScript ToInt32
//	_start returns several      UnsupportedExitValue error
//	guest trap                  Trapped error
//	proc_exit(code)             host process exits, or Exited(code) with WithExitFunc
//
// # Lifecycle
//
//	NotStarted -> Running -> Exited | Trapped
//
// Run may be called once. Close releases the engine, the executor and every
// descriptor, including preopens and listeners.
package runtime
