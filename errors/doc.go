// Package errors provides structured error types for the WASI runner.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the function name, observed wasm types and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLinking, errors.KindMissingImport).
//		Cause(errors.NewMissingImportsError(missing)).
//		Detail("%d unresolved import(s)", len(missing)).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingEntryPoint("_start")
//	err := errors.OutOfBounds(errors.PhaseSyscall, 65530, 16, 65536)
//
// Syscall and Marshal errors are relayed to the guest as errno values and
// never abort the host. All other kinds stop the run and reach the caller.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
