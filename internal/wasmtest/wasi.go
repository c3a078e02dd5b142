package wasmtest

// Namespace is the preview1 import module name.
const Namespace = "wasi_snapshot_preview1"

func repeat(t ValType, n int) []ValType {
	out := make([]ValType, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// Hello returns a command module whose _start writes msg to stdout.
func Hello(msg string) []byte {
	m := New()
	fdWrite := m.ImportFunc(Namespace, "fd_write", repeat(I32, 4), []ValType{I32})
	m.Memory(1)

	iov := make([]byte, 8)
	putU32(iov[0:], 16)
	putU32(iov[4:], uint32(len(msg)))
	m.Data(0, iov)
	m.Data(16, []byte(msg))

	start := m.Func(nil, nil, nil,
		I32Const(1), I32Const(0), I32Const(1), I32Const(8),
		Call(fdWrite), Drop(),
		End())
	m.Export("_start", start)
	return m.Encode()
}

// ProcExit returns a command module whose _start calls proc_exit(code) and
// traps if that ever returns.
func ProcExit(code int32) []byte {
	m := New()
	exit := m.ImportFunc(Namespace, "proc_exit", []ValType{I32}, nil)
	m.Memory(1)
	start := m.Func(nil, nil, nil, I32Const(code), Call(exit), Unreachable(), End())
	m.Export("_start", start)
	return m.Encode()
}

// Start returns a module with one page of memory whose _start has the given
// results and body.
func Start(results []ValType, body ...[]byte) []byte {
	m := New()
	m.Memory(1)
	start := m.Func(nil, results, nil, append(body, End())...)
	m.Export("_start", start)
	return m.Encode()
}

// Forwarder returns a module that imports the preview1 function name with
// the given parameters and an i32 result, and exports it as "invoke".
// Calling invoke passes its arguments straight through.
func Forwarder(name string, params ...ValType) []byte {
	m := New()
	imp := m.ImportFunc(Namespace, name, params, []ValType{I32})
	m.Memory(1)

	var body [][]byte
	for i := range params {
		body = append(body, LocalGet(uint32(i)))
	}
	body = append(body, Call(imp), End())
	invoke := m.Func(params, []ValType{I32}, nil, body...)
	m.Export("invoke", invoke)
	return m.Encode()
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
