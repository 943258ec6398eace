package wasmbuild

import "bytes"

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	var b bytes.Buffer
	b.WriteByte(OpI32Const)
	WriteLEB128s(&b, v)
	return b.Bytes()
}

// I64Const encodes i64.const v.
func I64Const(v int64) []byte {
	var b bytes.Buffer
	b.WriteByte(OpI64Const)
	WriteLEB128s64(&b, v)
	return b.Bytes()
}

// LocalGet encodes local.get idx.
func LocalGet(idx uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(OpLocalGet)
	WriteLEB128u(&b, idx)
	return b.Bytes()
}

// LocalSet encodes local.set idx.
func LocalSet(idx uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(OpLocalSet)
	WriteLEB128u(&b, idx)
	return b.Bytes()
}

// Call encodes call fn.
func Call(fn uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(OpCall)
	WriteLEB128u(&b, fn)
	return b.Bytes()
}

// Load8U encodes i32.load8_u with zero offset and byte alignment.
func Load8U() []byte {
	return []byte{OpI32Load8U, 0x00, 0x00}
}

// Packed pushes the i64 pointer/length pair ptr<<32 | n.
func Packed(ptr, n uint32) []byte {
	return I64Const(int64(uint64(ptr)<<32 | uint64(n)))
}

// Op returns raw opcode bytes.
func Op(ops ...byte) []byte {
	return ops
}

// If wraps then in an if block with no result.
func If(then ...[]byte) []byte {
	out := []byte{OpIf, BlockEmpty}
	for _, t := range then {
		out = append(out, t...)
	}
	return append(out, OpEnd)
}

// Forever encodes loop br 0 end.
func Forever() []byte {
	return []byte{OpLoop, BlockEmpty, OpBr, 0x00, OpEnd}
}
