package runtime

import (
	"context"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasi-runner/engine"
	"github.com/wippyai/wasi-runner/wasi/preview1"
)

// Import is one import of an inspected module.
type Import struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature,omitempty"`
	Supported bool   `json:"supported"`
}

// Export is one exported function or memory of an inspected module.
type Export struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature,omitempty"`
}

// Report describes a module's imports and exports against the import table.
type Report struct {
	Imports []Import `json:"imports"`
	Exports []Export `json:"exports"`
}

// Runnable reports whether every import is supported and the module exports
// the entry point.
func (r *Report) Runnable() bool {
	for _, imp := range r.Imports {
		if !imp.Supported {
			return false
		}
	}
	for _, exp := range r.Exports {
		if exp.Name == EntryPoint && exp.Kind == "func" {
			return true
		}
	}
	return false
}

// Missing returns the unsupported imports as "module#name".
func (r *Report) Missing() []string {
	var out []string
	for _, imp := range r.Imports {
		if !imp.Supported {
			out = append(out, imp.Module+"#"+imp.Name)
		}
	}
	return out
}

// Inspect compiles wasm without instantiating it and reports its imports and
// exports. No guest code runs.
func Inspect(ctx context.Context, wasm []byte) (*Report, error) {
	eng, err := engine.New(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer eng.Close(ctx)

	compiled, err := eng.Compile(ctx, wasm)
	if err != nil {
		return nil, err
	}
	defer compiled.Close(ctx)

	table := engine.NewImportTable(nil, nil, nil)
	report := &Report{}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		imp := Import{
			Module:    module,
			Name:      name,
			Kind:      "func",
			Signature: signature(def.ParamTypes(), def.ResultTypes()),
		}
		if sc, ok := table.Lookup(name); ok && module == preview1.ModuleName {
			params, results, err := sc.Signature()
			imp.Supported = err == nil &&
				equalTypes(params, def.ParamTypes()) &&
				equalTypes(results, def.ResultTypes())
		}
		report.Imports = append(report.Imports, imp)
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		report.Imports = append(report.Imports, Import{Module: module, Name: name, Kind: "memory"})
	}

	for name, def := range compiled.ExportedFunctions() {
		report.Exports = append(report.Exports, Export{
			Name:      name,
			Kind:      "func",
			Signature: signature(def.ParamTypes(), def.ResultTypes()),
		})
	}
	for name := range compiled.ExportedMemories() {
		report.Exports = append(report.Exports, Export{Name: name, Kind: "memory"})
	}
	sort.Slice(report.Exports, func(i, j int) bool {
		return report.Exports[i].Name < report.Exports[j].Name
	})
	return report, nil
}

func signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteString(") -> (")
	for i, t := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteByte(')')
	return b.String()
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
