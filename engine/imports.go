package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// ImportTable maps every supported preview1 import name to its trampoline.
// It is built once and never changes.
type ImportTable struct {
	byName map[string]*trampoline
	order  []*trampoline
}

// NewImportTable builds the table over the shared WASI context and executor.
// A nil exit uses OSExit.
func NewImportTable(wctx *Context, exec *Executor, exit ExitFunc) *ImportTable {
	if exit == nil {
		exit = OSExit
	}
	t := &ImportTable{byName: make(map[string]*trampoline, len(syscalls))}
	for _, sc := range syscalls {
		tr := &trampoline{sc: sc, wctx: wctx, exec: exec, exit: exit}
		t.byName[sc.Name] = tr
		t.order = append(t.order, tr)
	}
	return t
}

// Len returns the number of imports.
func (t *ImportTable) Len() int {
	return len(t.order)
}

// Names returns the import names, sorted.
func (t *ImportTable) Names() []string {
	names := make([]string, 0, len(t.order))
	for _, tr := range t.order {
		names = append(names, tr.sc.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the descriptor for name.
func (t *ImportTable) Lookup(name string) (Syscall, bool) {
	tr, ok := t.byName[name]
	if !ok {
		return Syscall{}, false
	}
	return tr.sc, true
}

// Provides reports whether the table satisfies the function import module.name.
func (t *ImportTable) Provides(module, name string) bool {
	if module != preview1.ModuleName {
		return false
	}
	_, ok := t.byName[name]
	return ok
}

// Signature returns the wazero parameter and result types of an import.
func (sc Syscall) Signature() ([]api.ValueType, []api.ValueType, error) {
	params := make([]api.ValueType, len(sc.Params))
	for i, k := range sc.Params {
		vt, ok := k.ValueType()
		if !ok {
			return nil, nil, fmt.Errorf("parameter %d: unknown kind %s", i, k)
		}
		params[i] = vt
	}
	var results []api.ValueType
	if sc.ReturnsErrno {
		results = []api.ValueType{api.ValueTypeI32}
	}
	return params, results, nil
}

// Install registers the table as the wasi_snapshot_preview1 host module of r.
func (t *ImportTable) Install(ctx context.Context, r wazero.Runtime) error {
	builder := r.NewHostModuleBuilder(preview1.ModuleName)
	for _, tr := range t.order {
		params, results, err := tr.sc.Signature()
		if err != nil {
			return errors.Registration(preview1.ModuleName, tr.sc.Name, err)
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(tr.call), params, results).
			Export(tr.sc.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Registration(preview1.ModuleName, "*", err)
	}
	Logger().Debug("installed import table",
		zap.String("module", preview1.ModuleName),
		zap.Int("functions", len(t.order)))
	return nil
}
