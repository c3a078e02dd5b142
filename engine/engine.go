package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// Config holds configuration for engine creation
type Config struct {
	// CacheDir enables wazero's on-disk compilation cache when set.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone closes the module when the call context is
	// cancelled, interrupting long-running guest code.
	CloseOnContextDone bool
}

// Engine owns the single wazero runtime of a process.
type Engine struct {
	runtime   wazero.Runtime
	cache     wazero.CompilationCache
	installed bool
}

// New creates the wazero runtime described by cfg. A nil cfg uses defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}

	e := &Engine{}
	if cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "open compilation cache "+cfg.CacheDir)
		}
		e.cache = cache
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Compile validates and compiles a binary module.
func (e *Engine) Compile(ctx context.Context, wasm []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Compile(err)
	}
	Logger().Debug("compiled module",
		zap.Int("bytes", len(wasm)),
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return compiled, nil
}

// Instantiate installs table and instantiates compiled under name. Every
// import the table cannot satisfy is reported together before wazero runs.
// Start functions are not run; the caller drives the entry point.
func (e *Engine) Instantiate(ctx context.Context, compiled wazero.CompiledModule, table *ImportTable, name string) (api.Module, error) {
	if missing := MissingImports(compiled, table); len(missing) > 0 {
		link := errors.New(errors.PhaseLinking, errors.KindMissingImport).
			Cause(errors.NewMissingImportsError(missing)).
			Detail("%d unresolved import(s)", len(missing)).
			Build()
		return nil, errors.Instantiation(link)
	}

	if !e.installed && e.runtime.Module(preview1.ModuleName) == nil {
		if err := table.Install(ctx, e.runtime); err != nil {
			return nil, err
		}
	}
	e.installed = true

	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return mod, nil
}

// MissingImports lists, as "module#name", every import of compiled that
// table cannot satisfy. Memory, table and global imports are never satisfied.
func MissingImports(compiled wazero.CompiledModule, table *ImportTable) []string {
	var missing []string
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if table == nil || !table.Provides(module, name) {
			missing = append(missing, module+"#"+name)
		}
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		missing = append(missing, module+"#"+name)
	}
	return missing
}

// Close tears down the runtime, closing every module, then the cache.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}
