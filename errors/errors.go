package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // runtime configuration
	PhaseLoad        Phase = "load"        // reading module bytes
	PhaseCompile     Phase = "compile"     // wasm validation and compilation
	PhaseHost        Phase = "host"        // import table registration
	PhaseLinking     Phase = "linking"     // import resolution
	PhaseInstantiate Phase = "instantiate" // module instantiation
	PhaseRuntime     Phase = "runtime"     // entry point execution
	PhaseMarshal     Phase = "marshal"     // guest to host argument narrowing
	PhaseSyscall     Phase = "syscall"     // WASI call execution
)

// Kind categorizes the error
type Kind string

const (
	KindCompile              Kind = "compile"
	KindInstantiation        Kind = "instantiation"
	KindMissingEntryPoint    Kind = "missing_entry_point"
	KindUnsupportedExitValue Kind = "unsupported_exit_value"
	KindTrapped              Kind = "trapped"
	KindSyscall              Kind = "syscall"
	KindMarshal              Kind = "marshal"
	KindMissingImport        Kind = "missing_import"
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindNotInitialized       Kind = "not_initialized"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindRegistration         Kind = "registration"
	KindInvalidData          Kind = "invalid_data"
	KindClosed               Kind = "closed"
)

// Error is the structured error type used throughout the runner
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Func     string
	WasmType string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Func != "" || e.WasmType != "" {
		b.WriteString(": ")
		if e.Func != "" && e.WasmType != "" {
			b.WriteString("function ")
			b.WriteString(e.Func)
			b.WriteString(", wasm type ")
			b.WriteString(e.WasmType)
		} else if e.Func != "" {
			b.WriteString("function ")
			b.WriteString(e.Func)
		} else {
			b.WriteString("wasm type ")
			b.WriteString(e.WasmType)
		}
	}

	if e.Detail != "" {
		if e.Func != "" || e.WasmType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Compile creates a compilation error for invalid module bytes
func Compile(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompile,
		Detail: "compile module",
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// MissingEntryPoint reports a module without the named export
func MissingEntryPoint(name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindMissingEntryPoint,
		Func:   name,
		Detail: fmt.Sprintf("Wasm module does not export %s function", name),
	}
}

// UnsupportedExitValue reports an entry point whose results cannot become an exit code
func UnsupportedExitValue(name string, types []string) *Error {
	observed := strings.Join(types, ", ")
	return &Error{
		Phase:    PhaseRuntime,
		Kind:     KindUnsupportedExitValue,
		Func:     name,
		WasmType: observed,
		Detail:   fmt.Sprintf("exited with value of type (%s)", observed),
	}
}

// Trapped wraps a guest trap or host abort
func Trapped(name string, cause error) *Error {
	return &Error{
		Phase: PhaseRuntime,
		Kind:  KindTrapped,
		Func:  name,
		Cause: cause,
	}
}

// Syscall reports a WASI call that finished with a non-zero errno
func Syscall(name string, errno uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseSyscall,
		Kind:   KindSyscall,
		Func:   name,
		Value:  errno,
		Detail: detail,
	}
}

// Marshal reports a guest argument that could not be narrowed to its declared kind
func Marshal(name string, index int, detail string) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindMarshal,
		Func:   name,
		Path:   []string{fmt.Sprintf("arg%d", index)},
		Detail: detail,
		Value:  index,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access [%d, %d) out of bounds (size %d)", offset, uint64(offset)+uint64(length), size),
		Value:  offset,
	}
}

// Closed reports use of a released or closed resource
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Namespace string // e.g., "wasi_snapshot_preview1"
	Function  string // e.g., "fd_write"
}

// MissingImportsError is returned when instantiation fails due to missing host functions
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "namespace#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		ns, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, MissingImport{
			Namespace: ns,
			Function:  fn,
		})
	}
	return result
}

func parseImportKey(key string) (namespace, function string) {
	ns, fn, found := strings.Cut(key, "#")
	if found {
		return ns, fn
	}
	return key, ""
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[linking] missing_import: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d host function(s):\n", len(e.Imports)))

	// Group by namespace for cleaner output
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], imp.Function)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, fn := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

// NotInitialized creates a not-initialized error for a missing module or context
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
