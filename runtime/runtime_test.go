package runtime

import (
	"bytes"
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasi-runner/engine"
	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/internal/wasmtest"
	"github.com/wippyai/wasi-runner/resource"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

var fdWriteParams = []wasmtest.ValType{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32}

func newRuntime(t *testing.T, opts ...Option) (*Runtime, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	opts = append([]Option{
		WithStdio(bytes.NewReader(nil), &stdout, &bytes.Buffer{}),
		WithEnvInherit(false),
		WithPreopens(Preopen{HostPath: t.TempDir(), GuestPath: "/"}),
		WithExitFunc(func(uint32) {}),
	}, opts...)

	rt, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt, &stdout
}

func run(t *testing.T, wasm []byte, opts ...Option) (*Runtime, *bytes.Buffer, int32, error) {
	t.Helper()
	rt, stdout := newRuntime(t, opts...)
	require.NoError(t, rt.Load(context.Background(), wasm))
	code, err := rt.Run(context.Background())
	return rt, stdout, code, err
}

func TestRunHello(t *testing.T) {
	rt, stdout, code, err := run(t, wasmtest.Hello("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), code)
	assert.Equal(t, "hello\n", stdout.String())
	assert.Equal(t, Exited, rt.State())

	gotCode, gotErr := rt.Result()
	assert.Equal(t, int32(0), gotCode)
	assert.NoError(t, gotErr)
}

func TestRunExitValues(t *testing.T) {
	tests := []struct {
		name    string
		results []wasmtest.ValType
		body    []byte
		want    int32
	}{
		{"no value", nil, nil, 0},
		{"i32", []wasmtest.ValType{wasmtest.I32}, wasmtest.I32Const(42), 42},
		{"negative i32", []wasmtest.ValType{wasmtest.I32}, wasmtest.I32Const(-7), -7},
		{"i64 truncated", []wasmtest.ValType{wasmtest.I64}, wasmtest.I64Const(1<<32 + 3), 3},
		{"f64", []wasmtest.ValType{wasmtest.F64}, wasmtest.F64Const(12.75), 12},
		{"f32 NaN", []wasmtest.ValType{wasmtest.F32}, wasmtest.F32Const(float32(nan())), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body [][]byte
			if tt.body != nil {
				body = append(body, tt.body)
			}
			rt, _, code, err := run(t, wasmtest.Start(tt.results, body...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, Exited, rt.State())
		})
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestRunUnsupportedExitValue(t *testing.T) {
	rt, _, _, err := run(t, wasmtest.Start(
		[]wasmtest.ValType{wasmtest.I32, wasmtest.I32},
		wasmtest.I32Const(1), wasmtest.I32Const(2)))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindUnsupportedExitValue})
	assert.Contains(t, err.Error(), "i32, i32")
	assert.Equal(t, Trapped, rt.State())
}

func TestRunMissingEntryPoint(t *testing.T) {
	m := wasmtest.New()
	m.Memory(1)
	m.Export("main", m.Func(nil, nil, nil, wasmtest.End()))

	rt, _ := newRuntime(t)
	require.NoError(t, rt.Load(context.Background(), m.Encode()))

	_, err := rt.Run(context.Background())
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindMissingEntryPoint})
	assert.Contains(t, err.Error(), "_start")
	assert.Equal(t, NotStarted, rt.State())
}

func TestRunTrap(t *testing.T) {
	rt, _, _, err := run(t, wasmtest.Start(nil, wasmtest.Unreachable()))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindTrapped})
	assert.Equal(t, Trapped, rt.State())
}

func TestRunOnce(t *testing.T) {
	rt, _, _, err := run(t, wasmtest.Start(nil))
	require.NoError(t, err)

	_, err = rt.Run(context.Background())
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindInvalidInput})
}

func TestRunBeforeLoad(t *testing.T) {
	rt, _ := newRuntime(t)
	_, err := rt.Run(context.Background())
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindNotInitialized})
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	rt, _ := newRuntime(t)
	assert.ErrorIs(t, rt.Load(ctx, nil), &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})
	assert.ErrorIs(t, rt.Load(ctx, []byte("\x00asm garbage")), &errors.Error{Phase: errors.PhaseCompile, Kind: errors.KindCompile})

	m := wasmtest.New()
	m.ImportFunc(wasmtest.Namespace, "fd_write", fdWriteParams, []wasmtest.ValType{wasmtest.I32})
	m.ImportFunc(wasmtest.Namespace, "thread_spawn", []wasmtest.ValType{wasmtest.I32}, []wasmtest.ValType{wasmtest.I32})
	m.ImportFunc("env", "abort", nil, nil)
	m.Memory(1)
	m.Export("_start", m.Func(nil, nil, nil, wasmtest.End()))

	err := rt.Load(ctx, m.Encode())
	var missing *errors.MissingImportsError
	require.ErrorAs(t, err, &missing)
	assert.Len(t, missing.Imports, 2)
	assert.Nil(t, rt.Module())

	require.NoError(t, rt.Load(ctx, wasmtest.Start(nil)))
	assert.NotNil(t, rt.Module())
	assert.ErrorIs(t, rt.Load(ctx, wasmtest.Start(nil)), &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})
}

func TestProcExitHook(t *testing.T) {
	var got []uint32
	rt, _, code, err := run(t, wasmtest.ProcExit(7), WithExitFunc(func(c uint32) { got = append(got, c) }))
	require.NoError(t, err)
	assert.Equal(t, int32(7), code)
	assert.Equal(t, []uint32{7}, got)
	assert.Equal(t, Exited, rt.State())
}

func TestProcExitNegative(t *testing.T) {
	_, _, code, err := run(t, wasmtest.ProcExit(-1))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), code)
}

// The second write goes through memory that only exists after growth.
func TestMemoryGrowthBetweenCalls(t *testing.T) {
	const (
		iov2 = 65536
		buf2 = 65552
	)
	m := wasmtest.New()
	fdWrite := m.ImportFunc(wasmtest.Namespace, "fd_write", fdWriteParams, []wasmtest.ValType{wasmtest.I32})
	m.Memory(1)
	m.Data(0, []byte{16, 0, 0, 0, 6, 0, 0, 0})
	m.Data(16, []byte("first\n"))
	m.Export("_start", m.Func(nil, nil, nil,
		wasmtest.I32Const(1), wasmtest.I32Const(0), wasmtest.I32Const(1), wasmtest.I32Const(8),
		wasmtest.Call(fdWrite), wasmtest.Drop(),

		wasmtest.I32Const(1), wasmtest.MemoryGrow(), wasmtest.Drop(),
		wasmtest.I32Const(iov2), wasmtest.I32Const(buf2), wasmtest.I32Store(0),
		wasmtest.I32Const(iov2), wasmtest.I32Const(4), wasmtest.I32Store(4),
		wasmtest.I32Const(buf2), wasmtest.I32Const(0x776f7267), wasmtest.I32Store(0), // "grow"

		wasmtest.I32Const(1), wasmtest.I32Const(iov2), wasmtest.I32Const(1), wasmtest.I32Const(8),
		wasmtest.Call(fdWrite), wasmtest.Drop(),
		wasmtest.End()))

	_, stdout, code, err := run(t, m.Encode())
	require.NoError(t, err)
	assert.Equal(t, int32(0), code)
	assert.Equal(t, "first\ngrow", stdout.String())
}

func TestFdWriteOutOfBounds(t *testing.T) {
	m := wasmtest.New()
	fdWrite := m.ImportFunc(wasmtest.Namespace, "fd_write", fdWriteParams, []wasmtest.ValType{wasmtest.I32})
	m.Memory(1)
	m.Data(0, []byte{0xf0, 0xff, 0, 0, 100, 0, 0, 0}) // 100 bytes at 65520
	m.Export("_start", m.Func(nil, []wasmtest.ValType{wasmtest.I32}, nil,
		wasmtest.I32Const(1), wasmtest.I32Const(0), wasmtest.I32Const(1), wasmtest.I32Const(8),
		wasmtest.Call(fdWrite),
		wasmtest.End()))

	_, stdout, code, err := run(t, m.Encode())
	require.NoError(t, err)
	assert.Equal(t, int32(preview1.ErrnoFault), code)
	assert.Empty(t, stdout.String())
}

func TestContextDeadline(t *testing.T) {
	rt, _ := newRuntime(t, WithCloseOnContextDone(true))
	require.NoError(t, rt.Load(context.Background(), wasmtest.Start(nil,
		wasmtest.Loop(), wasmtest.Br(0), wasmtest.End())))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := rt.Run(ctx)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindTrapped})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Trapped, rt.State())
}

func TestNewErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, WithArgv0(""))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput})

	_, err = New(ctx, WithPreopens(Preopen{HostPath: filepath.Join(t.TempDir(), "missing"), GuestPath: "/"}))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, err = New(ctx, WithPreopens(), WithListen(l.Addr().String()))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}, "address in use")
}

func TestCloseReleasesDescriptors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o600))

	rt, _ := newRuntime(t, WithPreopens(Preopen{HostPath: dir, GuestPath: "/"}), WithListen("127.0.0.1:0"))
	addr := rt.listeners[0].Addr().String()

	ctx := context.Background()
	require.NoError(t, rt.Load(ctx, wasmtest.Start(nil)))
	require.NoError(t, rt.Close(ctx))
	require.NoError(t, rt.Close(ctx))

	l, err := net.Listen("tcp", addr)
	require.NoError(t, err, "listener address is free again")
	_ = l.Close()
}

// procExitChildEnv makes the test binary act as a guest host process that
// exits through the default proc_exit path.
const procExitChildEnv = "WASIRUN_PROC_EXIT_CHILD"

func TestProcExitTerminatesProcess(t *testing.T) {
	if code := os.Getenv(procExitChildEnv); code != "" {
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		rt, err := New(context.Background(),
			WithStdio(bytes.NewReader(nil), &bytes.Buffer{}, &bytes.Buffer{}),
			WithEnvInherit(false),
			WithPreopens(),
		)
		require.NoError(t, err)
		require.NoError(t, rt.Load(context.Background(), wasmtest.ProcExit(int32(n))))
		_, _ = rt.Run(context.Background())
		t.Fatal("proc_exit returned to the host")
	}

	for _, code := range []int{7, 42} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestProcExitTerminatesProcess$")
			cmd.Env = append(os.Environ(), procExitChildEnv+"="+strconv.Itoa(code))
			err := cmd.Run()

			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, code, exitErr.ExitCode())
		})
	}
}

func TestDescriptorEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(func() { engine.SetLogger(nil) })

	var events []resource.Event
	rt, stdout := newRuntime(t,
		WithLogger(zap.New(core)),
		WithObserver(resource.ObserverFunc(func(e resource.Event) { events = append(events, e) })),
	)

	require.Len(t, events, 4, "stdio and one preopen")
	for i, e := range events {
		assert.Equal(t, resource.EventCreated, e.Type)
		assert.Equal(t, resource.Handle(i), e.Handle)
	}

	require.NoError(t, rt.Load(context.Background(), wasmtest.Hello("x")))
	_, err := rt.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", stdout.String())

	require.NoError(t, rt.Close(context.Background()))
	require.Len(t, events, 8)
	for _, e := range events[4:] {
		assert.Equal(t, resource.EventDropped, e.Type)
	}

	created := logs.FilterMessage("descriptor created").AllUntimed()
	require.Len(t, created, 4)
	assert.Equal(t, uint32(3), created[3].ContextMap()["fd"])
	assert.Equal(t, 4, logs.FilterMessage("descriptor dropped").Len())
}
