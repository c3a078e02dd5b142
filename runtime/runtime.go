package runtime

import (
	"context"
	stderrors "errors"
	"net"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-runner/engine"
	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/resource"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// Runtime runs one WASI command module. It owns the engine, the executor
// that serves host calls, the WASI context and the instantiated module.
type Runtime struct {
	cfg       *Config
	engine    *engine.Engine
	exec      *engine.Executor
	wctx      *engine.Context
	table     *engine.ImportTable
	compiled  wazero.CompiledModule
	module    api.Module
	listeners []net.Listener
	err       error
	code      int32
	state     State
	mu        sync.Mutex
}

// New validates the configuration, builds the WASI context and brings up the
// engine. Preopens and listeners are opened here so that failures surface
// before any module is loaded.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		engine.SetLogger(cfg.Logger)
	}

	r := &Runtime{cfg: cfg}

	w := preview1.New().
		WithArgs(cfg.Argv()...).
		WithEnv(cfg.Environment())
	if cfg.Stdin != nil {
		w = w.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		w = w.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		w = w.WithStderr(cfg.Stderr)
	}
	if cfg.MaxFiles > 0 {
		w = w.WithMaxFiles(cfg.MaxFiles)
	}
	for _, p := range cfg.Preopens {
		w = w.WithDir(p.HostPath, p.GuestPath, p.ReadOnly)
	}
	for _, l := range cfg.Listeners {
		w = w.WithListener(l)
	}
	w = w.Observe(resource.ObserverFunc(logDescriptor))
	for _, o := range cfg.Observers {
		w = w.Observe(o)
	}
	for _, addr := range cfg.Listen {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			r.closeListeners()
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "listen on "+addr)
		}
		r.listeners = append(r.listeners, l)
		w = w.WithListener(l)
	}

	r.wctx = engine.NewContext(w)
	if err := r.wctx.Open(); err != nil {
		_ = r.wctx.Close()
		r.closeListeners()
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "open preopens")
	}

	eng, err := engine.New(ctx, &engine.Config{
		CacheDir:           cfg.CacheDir,
		MemoryLimitPages:   cfg.MemoryLimitPages,
		CloseOnContextDone: cfg.CloseOnContextDone,
	})
	if err != nil {
		_ = r.wctx.Close()
		return nil, err
	}
	r.engine = eng
	r.exec = engine.NewExecutor()
	r.table = engine.NewImportTable(r.wctx, r.exec, cfg.ExitFunc)

	engine.Logger().Debug("runtime created",
		zap.Strings("argv", cfg.Argv()),
		zap.Int("env", len(w.Environ())),
		zap.Int("preopens", len(cfg.Preopens)),
		zap.Int("listeners", len(cfg.Listeners)+len(cfg.Listen)))
	return r, nil
}

func logDescriptor(e resource.Event) {
	if ce := engine.Logger().Check(zap.DebugLevel, "descriptor "+e.Type.String()); ce != nil {
		fields := []zap.Field{zap.Uint32("fd", uint32(e.Handle))}
		if e.Type == resource.EventMoved {
			fields = append(fields, zap.Uint32("from", uint32(e.From)))
		}
		ce.Write(fields...)
	}
}

func (r *Runtime) closeListeners() {
	for _, l := range r.listeners {
		_ = l.Close()
	}
	r.listeners = nil
}

// Config returns the resolved configuration.
func (r *Runtime) Config() *Config {
	return r.cfg
}

// Load compiles and instantiates wasm. A Runtime holds one module.
func (r *Runtime) Load(ctx context.Context, wasm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.module != nil {
		return errors.InvalidInput(errors.PhaseLoad, "module already loaded")
	}
	if len(wasm) == 0 {
		return errors.InvalidInput(errors.PhaseLoad, "empty module")
	}

	compiled, err := r.engine.Compile(ctx, wasm)
	if err != nil {
		return err
	}
	mod, err := r.engine.Instantiate(ctx, compiled, r.table, r.cfg.Argv0)
	if err != nil {
		_ = compiled.Close(ctx)
		return err
	}
	r.compiled = compiled
	r.module = mod
	return nil
}

// Module returns the instantiated module, or nil before Load.
func (r *Runtime) Module() api.Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.module
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the exit code and error of a finished run.
func (r *Runtime) Result() (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code, r.err
}

// Run invokes the entry point and maps its outcome to an exit code. A guest
// trap or an unsupported result yields an error and the Trapped state;
// proc_exit through an exit hook yields Exited with the guest's code.
// Run may be called once.
func (r *Runtime) Run(ctx context.Context) (int32, error) {
	r.mu.Lock()
	if r.module == nil {
		r.mu.Unlock()
		return 0, errors.NotInitialized(errors.PhaseRuntime, "module")
	}
	if r.state != NotStarted {
		r.mu.Unlock()
		return 0, errors.InvalidInput(errors.PhaseRuntime, "run already called")
	}
	start := r.module.ExportedFunction(EntryPoint)
	if start == nil {
		r.mu.Unlock()
		return 0, errors.MissingEntryPoint(EntryPoint)
	}
	r.state = Running
	r.mu.Unlock()

	results, err := start.Call(ctx)
	code, err := r.outcome(ctx, start.Definition().ResultTypes(), results, err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.code, r.err = code, err
	if err != nil {
		r.state = Trapped
	} else {
		r.state = Exited
	}
	engine.Logger().Debug("entry point finished",
		zap.Stringer("state", r.state),
		zap.Int32("code", code),
		zap.Error(err))
	return code, err
}

func (r *Runtime) outcome(ctx context.Context, types []api.ValueType, results []uint64, callErr error) (int32, error) {
	if callErr == nil {
		return exitCode(types, results)
	}

	var exitErr *sys.ExitError
	if stderrors.As(callErr, &exitErr) {
		switch exitErr.ExitCode() {
		case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
			if ctx.Err() != nil {
				return 0, errors.Trapped(EntryPoint, ctx.Err())
			}
		}
		return int32(exitErr.ExitCode()), nil
	}
	return 0, errors.Trapped(EntryPoint, callErr)
}

// Close tears down the engine, stops the executor and closes every
// descriptor. It is safe to call more than once.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.engine != nil {
		if err := r.engine.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		r.engine = nil
	}
	if r.exec != nil {
		r.exec.Close()
		r.exec = nil
	}
	if r.wctx != nil {
		if err := r.wctx.Close(); err != nil {
			errs = append(errs, err)
		}
		r.wctx = nil
	}
	r.closeListeners()
	r.module = nil
	r.compiled = nil
	return stderrors.Join(errs...)
}
