package wasmtest

import "fmt"

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

const (
	magic   = 0x6d736100
	version = 1

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02

	funcTypeByte = 0x60
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importDecl struct {
	module  string
	name    string
	typeIdx uint32
	memory  bool
	min     uint32
}

type funcDecl struct {
	locals  []ValType
	body    []byte
	typeIdx uint32
}

type exportDecl struct {
	name string
	kind byte
	idx  uint32
}

type dataSeg struct {
	init   []byte
	offset uint32
}

// Module assembles a core module in memory. Imports must be declared before
// functions so that function indices stay stable.
type Module struct {
	memory  *uint32
	types   []funcType
	imports []importDecl
	funcs   []funcDecl
	exports []exportDecl
	data    []dataSeg
	nfuncs  uint32 // imported functions
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if equal(t.params, params) && equal(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

func equal(a, b []ValType) bool {
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

// ImportFunc declares a function import and returns its function index.
func (m *Module) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic(fmt.Sprintf("wasmtest: import %s.%s declared after functions", module, name))
	}
	m.imports = append(m.imports, importDecl{module: module, name: name, typeIdx: m.typeIndex(params, results)})
	m.nfuncs++
	return m.nfuncs - 1
}

// ImportMemory declares a memory import with min pages.
func (m *Module) ImportMemory(module, name string, min uint32) *Module {
	m.imports = append(m.imports, importDecl{module: module, name: name, memory: true, min: min})
	return m
}

// Memory defines a memory of the given pages exported as "memory".
func (m *Module) Memory(pages uint32) *Module {
	m.memory = &pages
	m.exports = append(m.exports, exportDecl{name: "memory", kind: kindMemory, idx: 0})
	return m
}

// Func defines a function and returns its index. Parameters occupy the first
// local indices, followed by locals.
func (m *Module) Func(params, results, locals []ValType, body ...[]byte) uint32 {
	code := Ops(body...)
	m.funcs = append(m.funcs, funcDecl{typeIdx: m.typeIndex(params, results), locals: locals, body: code})
	return m.nfuncs + uint32(len(m.funcs)) - 1
}

// Export exports function idx under name.
func (m *Module) Export(name string, idx uint32) *Module {
	m.exports = append(m.exports, exportDecl{name: name, kind: kindFunc, idx: idx})
	return m
}

// Data places init at offset of memory 0.
func (m *Module) Data(offset uint32, init []byte) *Module {
	m.data = append(m.data, dataSeg{offset: offset, init: init})
	return m
}

// Encode encodes the module to the binary format.
func (m *Module) Encode() []byte {
	var w writer
	w.u32le(magic)
	w.u32le(version)

	if len(m.types) > 0 {
		var sec writer
		sec.u32(uint32(len(m.types)))
		for _, t := range m.types {
			sec.byte(funcTypeByte)
			writeValTypes(&sec, t.params)
			writeValTypes(&sec, t.results)
		}
		w.section(sectionType, &sec)
	}

	if len(m.imports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			if imp.memory {
				sec.byte(kindMemory)
				sec.byte(0x00) // limits without max
				sec.u32(imp.min)
				continue
			}
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(sectionImport, &sec)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		w.section(sectionFunction, &sec)
	}

	if m.memory != nil {
		var sec writer
		sec.u32(1)
		sec.byte(0x00)
		sec.u32(*m.memory)
		w.section(sectionMemory, &sec)
	}

	if len(m.exports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.idx)
		}
		w.section(sectionExport, &sec)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body writer
			body.u32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.write(f.body)
			sec.u32(uint32(len(body.bytes())))
			sec.write(body.bytes())
		}
		w.section(sectionCode, &sec)
	}

	if len(m.data) > 0 {
		var sec writer
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.u32(0) // active, memory 0
			sec.write(Ops(I32Const(int32(d.offset)), End()))
			sec.u32(uint32(len(d.init)))
			sec.write(d.init)
		}
		w.section(sectionData, &sec)
	}

	return w.bytes()
}

func writeValTypes(w *writer, types []ValType) {
	w.u32(uint32(len(types)))
	for _, t := range types {
		w.byte(byte(t))
	}
}
