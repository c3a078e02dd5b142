// Package wasmtest builds small core WebAssembly modules in memory for tests.
//
// It covers only what test fixtures need: function imports, one memory,
// active data segments, exports and a handful of instructions.
//
//	m := wasmtest.New()
//	fdWrite := m.ImportFunc(wasmtest.Namespace, "fd_write", params, results)
//	m.Memory(1)
//	start := m.Func(nil, nil, nil, wasmtest.I32Const(1), ..., wasmtest.End())
//	m.Export("_start", start)
//	bin := m.Encode()
package wasmtest
