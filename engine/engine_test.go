package engine

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	wasirunner "github.com/wippyai/wasi-runner"
	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/internal/wasmtest"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

type harness struct {
	eng   *Engine
	table *ImportTable
	exec  *Executor
	wctx  *Context
}

func newHarness(t *testing.T, w *preview1.WASI, exit ExitFunc) *harness {
	t.Helper()
	ctx := context.Background()

	eng, err := New(ctx, &Config{CacheDir: t.TempDir()})
	require.NoError(t, err)

	h := &harness{eng: eng, exec: NewExecutor(), wctx: NewContext(w)}
	h.table = NewImportTable(h.wctx, h.exec, exit)
	require.NoError(t, h.wctx.Open())

	t.Cleanup(func() {
		_ = eng.Close(ctx)
		h.exec.Close()
		_ = h.wctx.Close()
	})
	return h
}

func (h *harness) instantiate(t *testing.T, wasm []byte, name string) api.Module {
	t.Helper()
	ctx := context.Background()
	compiled, err := h.eng.Compile(ctx, wasm)
	require.NoError(t, err)
	mod, err := h.eng.Instantiate(ctx, compiled, h.table, name)
	require.NoError(t, err)
	return mod
}

func TestHelloWorld(t *testing.T) {
	var stdout bytes.Buffer
	h := newHarness(t, preview1.New().WithStdout(&stdout), nil)

	mod := h.instantiate(t, wasmtest.Hello("hello, world\n"), "hello")
	_, err := mod.ExportedFunction("_start").Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello, world\n", stdout.String())
}

func TestInstantiateTwice(t *testing.T) {
	var stdout bytes.Buffer
	h := newHarness(t, preview1.New().WithStdout(&stdout), nil)

	for _, name := range []string{"first", "second"} {
		mod := h.instantiate(t, wasmtest.Hello(name+"\n"), name)
		_, err := mod.ExportedFunction("_start").Call(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, "first\nsecond\n", stdout.String())
}

func TestForwardedCalls(t *testing.T) {
	w := preview1.New().
		WithArgs("app.wasm", "x").
		WithClocks(func() int64 { return 1_700_000_000_000_000_000 }, func() int64 { return 12345 })
	h := newHarness(t, w, nil)
	ctx := context.Background()

	t.Run("clock_time_get", func(t *testing.T) {
		mod := h.instantiate(t, wasmtest.Forwarder("clock_time_get", wasmtest.I32, wasmtest.I64, wasmtest.I32), "clock")
		res, err := mod.ExportedFunction("invoke").Call(ctx,
			api.EncodeI32(int32(preview1.ClockMonotonic)), api.EncodeI64(1000), api.EncodeI32(64))
		require.NoError(t, err)
		assert.Equal(t, uint32(preview1.ErrnoSuccess), api.DecodeU32(res[0]))

		got, ok := mod.Memory().ReadUint64Le(64)
		require.True(t, ok)
		assert.Equal(t, uint64(12345), got)
	})

	t.Run("args_sizes_get", func(t *testing.T) {
		mod := h.instantiate(t, wasmtest.Forwarder("args_sizes_get", wasmtest.I32, wasmtest.I32), "args")
		res, err := mod.ExportedFunction("invoke").Call(ctx, api.EncodeI32(0), api.EncodeI32(4))
		require.NoError(t, err)
		assert.Equal(t, uint32(preview1.ErrnoSuccess), api.DecodeU32(res[0]))

		argc, _ := mod.Memory().ReadUint32Le(0)
		size, _ := mod.Memory().ReadUint32Le(4)
		assert.Equal(t, uint32(2), argc)
		assert.Equal(t, uint32(len("app.wasm\x00x\x00")), size)
	})

	t.Run("negative descriptor", func(t *testing.T) {
		mod := h.instantiate(t, wasmtest.Forwarder("fd_close", wasmtest.I32), "close")
		res, err := mod.ExportedFunction("invoke").Call(ctx, api.EncodeI32(-1))
		require.NoError(t, err)
		assert.Equal(t, uint32(preview1.ErrnoBadf), api.DecodeU32(res[0]))
	})

	t.Run("result out of bounds", func(t *testing.T) {
		mod := h.instantiate(t, wasmtest.Forwarder("random_get", wasmtest.I32, wasmtest.I32), "random")
		res, err := mod.ExportedFunction("invoke").Call(ctx, api.EncodeI32(65530), api.EncodeI32(16))
		require.NoError(t, err)
		assert.Equal(t, uint32(preview1.ErrnoFault), api.DecodeU32(res[0]))
	})
}

func TestSyscallLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	h := newHarness(t, preview1.New(), nil)
	ctx := context.Background()

	mod := h.instantiate(t, wasmtest.Forwarder("fd_close", wasmtest.I32), "close")
	_, err := mod.ExportedFunction("invoke").Call(ctx, api.EncodeI32(-1))
	require.NoError(t, err)

	mod = h.instantiate(t, wasmtest.Forwarder("sched_yield"), "yield")
	_, err = mod.ExportedFunction("invoke").Call(ctx)
	require.NoError(t, err)

	calls := logs.FilterMessage("wasi call").AllUntimed()
	require.Len(t, calls, 2)

	failed := calls[0].ContextMap()
	assert.Equal(t, "fd_close", failed["func"])
	assert.Equal(t, "EBADF", failed["errno"])
	assert.Equal(t, "[syscall] syscall: function fd_close - EBADF", failed["error"])

	ok := calls[1].ContextMap()
	assert.Equal(t, "sched_yield", ok["func"])
	assert.Equal(t, "ESUCCESS", ok["errno"])
	assert.NotContains(t, ok, "error")
}

func TestProcExitHook(t *testing.T) {
	var got []uint32
	h := newHarness(t, preview1.New(), func(code uint32) { got = append(got, code) })

	mod := h.instantiate(t, wasmtest.ProcExit(3), "exit")
	_, err := mod.ExportedFunction("_start").Call(context.Background())

	var exitErr *sys.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, uint32(3), exitErr.ExitCode())
	assert.Equal(t, []uint32{3}, got)
}

func TestMissingImports(t *testing.T) {
	h := newHarness(t, preview1.New(), nil)
	ctx := context.Background()

	m := wasmtest.New()
	m.ImportFunc(wasmtest.Namespace, "fd_write", []wasmtest.ValType{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32}, []wasmtest.ValType{wasmtest.I32})
	m.ImportFunc(wasmtest.Namespace, "thread_spawn", []wasmtest.ValType{wasmtest.I32}, []wasmtest.ValType{wasmtest.I32})
	m.ImportFunc("env", "log", []wasmtest.ValType{wasmtest.I32}, nil)
	m.ImportMemory("env", "memory", 1)

	compiled, err := h.eng.Compile(ctx, m.Encode())
	require.NoError(t, err)

	assert.Equal(t, []string{
		wasmtest.Namespace + "#thread_spawn",
		"env#log",
		"env#memory",
	}, MissingImports(compiled, h.table))

	_, err = h.eng.Instantiate(ctx, compiled, h.table, "missing")
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseInstantiate, Kind: errors.KindInstantiation})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLinking, Kind: errors.KindMissingImport})
	assert.Contains(t, err.Error(), "3 unresolved import(s)")

	var missing *errors.MissingImportsError
	require.ErrorAs(t, err, &missing)
	assert.Len(t, missing.Imports, 3)
	assert.Contains(t, err.Error(), "thread_spawn")
	assert.Contains(t, err.Error(), "log")
}

func TestCompileInvalid(t *testing.T) {
	h := newHarness(t, preview1.New(), nil)
	_, err := h.eng.Compile(context.Background(), []byte("not wasm"))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseCompile, Kind: errors.KindCompile})
}

func TestEngineCacheDirInvalid(t *testing.T) {
	file := t.TempDir() + "/file"
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(context.Background(), &Config{CacheDir: file + "/sub"})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput})
}

func TestTrampolineFailures(t *testing.T) {
	exec := NewExecutor()
	defer exec.Close()
	wctx := NewContext(preview1.New())
	ctx := context.Background()

	newTrampoline := func(call Call, params ...ValueKind) *trampoline {
		return &trampoline{wctx: wctx, exec: exec, exit: OSExit, sc: syscall("test_call", call, params...)}
	}

	t.Run("short stack", func(t *testing.T) {
		tr := newTrampoline(func(context.Context, *preview1.WASI, wasirunner.Memory, Args) preview1.Errno {
			t.Fatal("call ran")
			return 0
		}, KindI32, KindI32)
		stack := []uint64{1}
		tr.call(ctx, nil, stack)
		assert.Equal(t, uint64(preview1.ErrnoInval), stack[0])
	})

	t.Run("kind mismatch", func(t *testing.T) {
		tr := newTrampoline(func(_ context.Context, _ *preview1.WASI, _ wasirunner.Memory, a Args) preview1.Errno {
			a.I64(0)
			return preview1.ErrnoSuccess
		}, KindI32)
		stack := []uint64{1}
		tr.call(ctx, nil, stack)
		assert.Equal(t, uint64(preview1.ErrnoInval), stack[0])
	})

	t.Run("host panic traps", func(t *testing.T) {
		tr := newTrampoline(func(context.Context, *preview1.WASI, wasirunner.Memory, Args) preview1.Errno {
			panic("boom")
		})
		defer func() {
			r := recover()
			e, ok := r.(*errors.Error)
			require.True(t, ok, "panic value %T", r)
			assert.Equal(t, errors.KindTrapped, e.Kind)
			assert.Equal(t, "test_call", e.Func)
		}()
		tr.call(ctx, nil, []uint64{0})
	})

	t.Run("errno passes through", func(t *testing.T) {
		tr := newTrampoline(func(context.Context, *preview1.WASI, wasirunner.Memory, Args) preview1.Errno {
			return preview1.ErrnoNotsup
		})
		stack := []uint64{0}
		tr.call(ctx, nil, stack)
		assert.Equal(t, uint64(preview1.ErrnoNotsup), stack[0])
	})
}
