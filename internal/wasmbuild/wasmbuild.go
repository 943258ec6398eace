// Package wasmbuild assembles small core WebAssembly modules in memory.
//
// It covers the subset needed to produce translator plugins for tests and
// scaffolding: function imports, one linear memory, exported functions and
// active data segments.
package wasmbuild

import (
	"bytes"
	"encoding/binary"
)

// Binary format constants.
const (
	Magic   uint32 = 0x6D736100 // \0asm
	Version uint32 = 0x01

	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionCode     byte = 10
	SectionData     byte = 11

	KindFunc   byte = 0x00
	KindMemory byte = 0x02

	FuncTypeByte byte = 0x60
	BlockEmpty   byte = 0x40
)

// Opcodes.
const (
	OpUnreachable   byte = 0x00
	OpBlock         byte = 0x02
	OpLoop          byte = 0x03
	OpIf            byte = 0x04
	OpElse          byte = 0x05
	OpEnd           byte = 0x0B
	OpBr            byte = 0x0C
	OpBrIf          byte = 0x0D
	OpReturn        byte = 0x0F
	OpCall          byte = 0x10
	OpDrop          byte = 0x1A
	OpLocalGet      byte = 0x20
	OpLocalSet      byte = 0x21
	OpI32Load8U     byte = 0x2D
	OpI32Const      byte = 0x41
	OpI64Const      byte = 0x42
	OpI32Eqz        byte = 0x45
	OpI32Eq         byte = 0x46
	OpI32Add        byte = 0x6A
	OpI64Or         byte = 0x84
	OpI64Shl        byte = 0x86
	OpI64ExtendI32U byte = 0xAD
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

type importEntry struct {
	module string
	name   string
	typ    FuncType
}

type funcEntry struct {
	export string
	typ    FuncType
	locals []ValType
	body   []byte
}

type dataSegment struct {
	bytes  []byte
	offset uint32
}

// Module is a module under construction.
type Module struct {
	memoryExport string
	imports      []importEntry
	funcs        []funcEntry
	data         []dataSegment
	memoryPages  uint32
	hasMemory    bool
}

// New creates an empty module.
func New() *Module {
	return &Module{}
}

// Import declares an imported function and returns its index. All imports
// must be declared before the first Func.
func (m *Module) Import(module, name string, t FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmbuild: imports must precede function definitions")
	}
	m.imports = append(m.imports, importEntry{module: module, name: name, typ: t})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index. An empty export name keeps
// it internal. body is the instruction sequence without the final end.
func (m *Module) Func(export string, t FuncType, body ...[]byte) uint32 {
	return m.FuncWithLocals(export, t, nil, body...)
}

// FuncWithLocals is Func with extra locals declared after the parameters.
func (m *Module) FuncWithLocals(export string, t FuncType, locals []ValType, body ...[]byte) uint32 {
	m.funcs = append(m.funcs, funcEntry{export: export, typ: t, locals: locals, body: bytes.Join(body, nil)})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares the module's linear memory with a minimum page count.
func (m *Module) Memory(pages uint32, export string) {
	m.hasMemory = true
	m.memoryPages = pages
	m.memoryExport = export
}

// Data places b in memory at offset during instantiation.
func (m *Module) Data(offset uint32, b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	m.data = append(m.data, dataSegment{offset: offset, bytes: cp})
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	var w bytes.Buffer
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	w.Write(hdr[:])

	// one type per import and function, unshared
	var types []FuncType
	for _, imp := range m.imports {
		types = append(types, imp.typ)
	}
	for _, f := range m.funcs {
		types = append(types, f.typ)
	}

	if len(types) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(types)))
		for _, t := range types {
			sec.WriteByte(FuncTypeByte)
			writeValTypes(&sec, t.Params)
			writeValTypes(&sec, t.Results)
		}
		writeSection(&w, SectionType, sec.Bytes())
	}

	if len(m.imports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.imports)))
		for i, imp := range m.imports {
			writeName(&sec, imp.module)
			writeName(&sec, imp.name)
			sec.WriteByte(KindFunc)
			WriteLEB128u(&sec, uint32(i))
		}
		writeSection(&w, SectionImport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.funcs)))
		for i := range m.funcs {
			WriteLEB128u(&sec, uint32(len(m.imports)+i))
		}
		writeSection(&w, SectionFunction, sec.Bytes())
	}

	if m.hasMemory {
		var sec bytes.Buffer
		WriteLEB128u(&sec, 1)
		sec.WriteByte(0x00) // min only
		WriteLEB128u(&sec, m.memoryPages)
		writeSection(&w, SectionMemory, sec.Bytes())
	}

	var exports bytes.Buffer
	count := 0
	if m.hasMemory && m.memoryExport != "" {
		writeName(&exports, m.memoryExport)
		exports.WriteByte(KindMemory)
		WriteLEB128u(&exports, 0)
		count++
	}
	for i, f := range m.funcs {
		if f.export == "" {
			continue
		}
		writeName(&exports, f.export)
		exports.WriteByte(KindFunc)
		WriteLEB128u(&exports, uint32(len(m.imports)+i))
		count++
	}
	if count > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(count))
		sec.Write(exports.Bytes())
		writeSection(&w, SectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body bytes.Buffer
			WriteLEB128u(&body, uint32(len(f.locals)))
			for _, l := range f.locals {
				WriteLEB128u(&body, 1)
				body.WriteByte(byte(l))
			}
			body.Write(f.body)
			body.WriteByte(OpEnd)
			WriteLEB128u(&sec, uint32(body.Len()))
			sec.Write(body.Bytes())
		}
		writeSection(&w, SectionCode, sec.Bytes())
	}

	if len(m.data) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.data)))
		for _, d := range m.data {
			sec.WriteByte(0x00) // active, memory 0
			sec.WriteByte(OpI32Const)
			WriteLEB128s(&sec, int32(d.offset))
			sec.WriteByte(OpEnd)
			WriteLEB128u(&sec, uint32(len(d.bytes)))
			sec.Write(d.bytes)
		}
		writeSection(&w, SectionData, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	WriteLEB128u(w, uint32(len(data)))
	w.Write(data)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	WriteLEB128u(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

func writeName(w *bytes.Buffer, s string) {
	WriteLEB128u(w, uint32(len(s)))
	w.WriteString(s)
}
