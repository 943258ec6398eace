package instruction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

func TestRV32I_Decode(t *testing.T) {
	d := MustBuiltin(RV32I)
	require.Equal(t, 32, d.Width())

	tests := []struct {
		name string
		word uint64
		want string
	}{
		{"addi", 0x00500093, "addi ra, zero, 5"},
		{"addi negative", 0xfff00093, "addi ra, zero, -1"},
		{"add", 0x002081b3, "add gp, ra, sp"},
		{"sub", 0x402081b3, "sub gp, ra, sp"},
		{"beq backwards", 0xfe208ee3, "beq ra, sp, -4"},
		{"lui", 0x123452b7, "lui t0, 0x12345"},
		{"lw", 0x00812503, "lw a0, 8(sp)"},
		{"sw", 0x00a12423, "sw a0, 8(sp)"},
		{"srai", 0x40315093, "srai ra, sp, 3"},
		{"ecall", 0x00000073, "ecall"},
		{"ebreak", 0x00100073, "ebreak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Decode(tt.word)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := d.Decode(0xffffffff)
	assert.False(t, ok)
}

func TestBuiltinDecoders(t *testing.T) {
	tests := []struct {
		decoder string
		word    uint64
		want    string
	}{
		{RV32, 0x00000001, "c.nop"},
		{RV32, 0x81350593, "addi a1, a0, -2029"},
		{RV32, 0x02c58533, "mul a0, a1, a2"},
		{RV32, 0x1005252f, "lr.w a0, (a0)"},
		{RV32, 0x30002573, "csrrs a0, 0x300, zero"},
		{RV32, 0x00c5f553, "fadd.s fa0, fa1, fa2"},
		{RV32, 0x60051513, "clz a0, a0"},
		{RV32, 0x00004515, "c.li a0, 5"},
		{RV32, 0x00001141, "c.addi sp, -16"},
		{RV32, 0x00008082, "c.jr ra"},
		{RV64, 0x00000001, "c.nop"},
		{RV64, 0x81350593, "addi a1, a0, -2029"},
		{RV64, 0x00813503, "ld a0, 8(sp)"},
		{RV64, 0x03f59593, "slli a1, a1, 63"},
		{RV64, 0x02c5053b, "mulw a0, a0, a2"},
		{RV64, 0x0000e406, "c.sdsp ra, 8(sp)"},
		{MIPS, 0x24210000, "addiu $at, $at, 0"},
		{MIPS, 0xafc10000, "sw $at, 0($fp)"},
		{MIPS, 0x03e00008, "jr $ra"},
		{MIPS, 0x00000000, "nop"},
		{LA64, 0x1a000004, "pcalau12i $a0, 0"},
		{LA64, 0x29bfb2cc, "st.w $t0, $fp, -20"},
		{LA64, 0x02ffc063, "addi.d $sp, $sp, -16"},
		{LA64, 0x4c000020, "jirl $zero, $ra, 0"},
	}
	for _, tt := range tests {
		t.Run(tt.decoder+"/"+tt.want, func(t *testing.T) {
			got, ok := MustBuiltin(tt.decoder).Decode(tt.word)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinDecodersUnknownAndStates(t *testing.T) {
	ctx := context.Background()
	meta := value.VariableMeta{Width: 32}
	unknown := map[string]uint64{
		RV32: 0x0000809f,
		RV64: 0x0000809f,
		MIPS: 0x0003a873,
		LA64: 0xffffffff,
	}
	for name, word := range unknown {
		d := MustBuiltin(name)
		r, err := d.Translate(ctx, meta, value.FromUint(word, 32))
		require.NoError(t, err, name)
		assert.Equal(t, fmt.Sprintf("UNKNOWN INSN (0x%08x)", word), r.Text, name)
		assert.Equal(t, value.Warn, r.Kind, name)

		for bits, kind := range map[string]value.ValueKind{
			"01xzz-hlw0010001000100010001000": value.Undefined,
			"010zz-hlw0010001000100010001000": value.HighImpedance,
			"01011-hlw0010001000100010001000": value.DontCare,
		} {
			v, err := value.FromBits(bits, 32)
			require.NoError(t, err)
			r, err := d.Translate(ctx, meta, v)
			require.NoError(t, err)
			assert.Equal(t, kind, r.Kind, name+" "+bits)
		}
	}

	_, err := Builtin("Z80")
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindNotFound, kind)
}

func TestDecoder_Translate(t *testing.T) {
	d := MustBuiltin(RV32I)
	ctx := context.Background()
	meta := value.VariableMeta{Width: 32}

	fit, err := d.Validate(meta)
	require.NoError(t, err)
	assert.Equal(t, translator.NotRecommended, fit)

	_, err = d.Validate(value.VariableMeta{Width: 16})
	assert.True(t, errors.IsIncompatible(err))

	r, err := d.Translate(ctx, meta, value.FromUint(0x00500093, 32))
	require.NoError(t, err)
	assert.Equal(t, value.Result("addi ra, zero, 5", value.Normal), r)

	r, err = d.Translate(ctx, meta, value.FromUint(0xffffffff, 32))
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN INSN (0xffffffff)", r.Text)
	assert.Equal(t, value.Warn, r.Kind)

	r, err = d.Translate(ctx, meta, value.FromUint(0xff, 32))
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN INSN (0x000000ff)", r.Text)

	x, err := value.FromBits("x", 32)
	require.NoError(t, err)
	r, err = d.Translate(ctx, meta, x)
	require.NoError(t, err)
	assert.Equal(t, value.Undefined, r.Kind)
}

const toyA = `
width = 8
[fields]
reg = { bits = [[3, 0]] }
[[instruction]]
name = "inc"
mask = 0xf0
match = 0x10
format = "inc r{reg}"
`

const toyB = `
width = 8
[[instruction]]
name = "nop"
mask = 0xff
match = 0x00
format = "nop"
`

const toyWide = `
width = 16
[[instruction]]
name = "wide"
mask = 0xffff
match = 0x0001
format = "wide"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "decoders", "toy", "a.toml"), toyA)
	writeFile(t, filepath.Join(root, "decoders", "toy", "b.toml"), toyB)
	writeFile(t, filepath.Join(root, "decoders", "toy", "c.toml"), toyWide)
	writeFile(t, filepath.Join(root, "decoders", "toy", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "decoders", "broken", "a.toml"), "width = ")
	writeFile(t, filepath.Join(root, "decoders", "nowidth", "a.toml"), "name = 'x'")

	decoders := Discover(root)
	require.Len(t, decoders, 1, "broken and width-less decoders are skipped")

	d := decoders[0]
	assert.Equal(t, "toy", d.Name())
	assert.Equal(t, 8, d.Width())

	got, ok := d.Decode(0x13)
	require.True(t, ok)
	assert.Equal(t, "inc r3", got)

	got, ok = d.Decode(0x00)
	require.True(t, ok)
	assert.Equal(t, "nop", got)

	_, ok = d.Decode(0x01)
	assert.False(t, ok, "16-bit file with mismatched width was skipped")
}

func TestDiscover_Missing(t *testing.T) {
	assert.Empty(t, Discover(t.TempDir()))
}

func TestNew_Errors(t *testing.T) {
	a, err := Parse([]byte(toyA))
	require.NoError(t, err)
	w, err := Parse([]byte(toyWide))
	require.NoError(t, err)

	_, err = New("mixed", a, w)
	require.Error(t, err)

	bad, err := Parse([]byte(`
width = 8
[[instruction]]
name = "x"
mask = 0xff
match = 0x01
format = "x {missing}"
`))
	require.NoError(t, err)
	_, err = New("bad", bad)
	require.Error(t, err)

	_, err = New("empty")
	require.Error(t, err)

	_, err = Builtin("nope")
	require.Error(t, err)
}
