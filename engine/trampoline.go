package engine

import (
	"context"
	"os"
	"time"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// ExitFunc receives the guest's proc_exit code. If it returns, the guest is
// unwound with a sys.ExitError carrying the same code.
type ExitFunc func(code uint32)

// OSExit terminates the host process with the guest's exit code.
func OSExit(code uint32) {
	os.Exit(int(int32(code)))
}

// trampoline adapts one Syscall to wazero's stack-based host function ABI.
type trampoline struct {
	wctx *Context
	exec *Executor
	exit ExitFunc
	sc   Syscall
}

func (t *trampoline) call(ctx context.Context, mod api.Module, stack []uint64) {
	if t.sc.Call == nil {
		t.procExit(ctx, mod, stack)
		return
	}

	start := time.Now()
	args, errno := t.dispatch(ctx, mod, stack)
	stack[0] = uint64(uint32(errno))

	if ce := Logger().Check(zap.DebugLevel, "wasi call"); ce != nil {
		fields := []zap.Field{
			zap.String("func", t.sc.Name),
			zap.Int64s("args", args.vals),
			zap.String("errno", errno.Name()),
			zap.Duration("took", time.Since(start)),
		}
		if errno != preview1.ErrnoSuccess {
			fields = append(fields, zap.Error(errors.Syscall(t.sc.Name, uint32(errno), errno.Name())))
		}
		ce.Write(fields...)
	}
}

// dispatch narrows the arguments and runs the call on the executor while
// holding the WASI context lock. Marshal errors become EINVAL; any other
// host failure traps the guest.
func (t *trampoline) dispatch(ctx context.Context, mod api.Module, stack []uint64) (Args, preview1.Errno) {
	args, err := narrow(t.sc.Name, t.sc.Params, stack)
	if err != nil {
		Logger().Warn("reject wasi call", zap.String("func", t.sc.Name), zap.Error(err))
		return args, preview1.ErrnoInval
	}

	view := checkout(mod)
	defer view.release()

	val, err := t.exec.Run(ctx, OpFunc(func(ctx context.Context) (uint64, error) {
		errno := t.wctx.Do(func(w *preview1.WASI) preview1.Errno {
			return t.sc.Call(ctx, w, view, args)
		})
		return uint64(errno), nil
	}))
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Kind == errors.KindMarshal {
			Logger().Warn("reject wasi call", zap.String("func", t.sc.Name), zap.Error(err))
			return args, preview1.ErrnoInval
		}
		trapErr := errors.New(errors.PhaseSyscall, errors.KindTrapped).
			Cause(err).
			Build()
		trapErr.Func = t.sc.Name
		panic(trapErr)
	}
	return args, preview1.Errno(val)
}

func (t *trampoline) procExit(ctx context.Context, mod api.Module, stack []uint64) {
	code := uint32(stack[0])
	Logger().Debug("proc_exit", zap.Uint32("code", code))
	_ = Logger().Sync()

	t.exit(code)

	// The hook returned: stop the guest here, as the exit would have.
	_ = mod.CloseWithExitCode(ctx, code)
	panic(sys.NewExitError(code))
}
