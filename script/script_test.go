package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

const opcodeScript = `
surfer.register{
    name = "Opcode",
    translates = function(var)
        if var.width == 8 then return surfer.Preference.Prefer end
        if var.width < 8 then return surfer.Preference.Yes end
        return surfer.Preference.No
    end,
    translate = function(var, value)
        if value == "00000000" then return "NOP", surfer.ValueKind.Weak end
        if value == "11111111" then error("reserved opcode") end
        if value == "10101010" then return "ALT", surfer.ValueKind.Custom(255, 128, 0) end
        if value == "01010101" then return var.scope .. "/" .. var.name, "warn" end
        return value, surfer.ValueKind.Normal
    end,
}
`

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func loadOne(t *testing.T, r *Runtime, src string) *Translator {
	t.Helper()
	path := writeScript(t, t.TempDir(), "s.lua", src)
	ts, err := r.LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	return ts[0]
}

func meta(width int) value.VariableMeta {
	return value.VariableMeta{Ref: value.Ref{Scope: "top.cpu", Name: "op"}, Width: width}
}

func TestRegisterAndValidate(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, opcodeScript)

	assert.Equal(t, "Opcode", tr.Name())
	assert.Equal(t, translator.Scripted, tr.Domain())

	fit, err := tr.Validate(meta(8))
	require.NoError(t, err)
	assert.Equal(t, translator.Preferred, fit)

	fit, err = tr.Validate(meta(4))
	require.NoError(t, err)
	assert.Equal(t, translator.NotRecommended, fit)

	_, err = tr.Validate(meta(16))
	assert.True(t, errors.IsIncompatible(err))
}

func TestTranslate(t *testing.T) {
	ctx := context.Background()
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, opcodeScript)

	tests := []struct {
		bits string
		text string
		kind value.ValueKind
	}{
		{"00000000", "NOP", value.Weak},
		{"00010010", "00010010", value.Normal},
		{"10101010", "ALT", value.Custom(value.Color{R: 255, G: 128, A: 255})},
		{"01010101", "top.cpu/op", value.Warn},
	}
	for _, tt := range tests {
		res, err := tr.Translate(ctx, meta(8), value.MustBits(tt.bits))
		require.NoError(t, err, tt.bits)
		assert.Equal(t, tt.text, res.Text, tt.bits)
		assert.Equal(t, tt.kind, res.Kind, tt.bits)
	}
}

func TestExceptionIsPerCall(t *testing.T) {
	ctx := context.Background()
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, opcodeScript)

	_, err := tr.Translate(ctx, meta(8), value.MustBits("11111111"))
	require.Error(t, err)
	assert.True(t, errors.IsRuntimeFault(err))

	faulted := translator.Faulted(err)
	assert.Equal(t, value.Warn, faulted.Kind)
	assert.Contains(t, faulted.Text, "reserved opcode")

	res, err := tr.Translate(ctx, meta(8), value.MustBits("00000000"))
	require.NoError(t, err)
	assert.Equal(t, "NOP", res.Text)
}

func TestErrorMessageKeptVerbatim(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, `surfer.register{ name = "Pct", translate = function() error("100% of %d lanes") end }`)

	_, err := tr.Translate(context.Background(), meta(8), value.MustBits("00000001"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "100% of %d lanes")
	assert.NotContains(t, err.Error(), "%!")
}

func TestTimeout(t *testing.T) {
	ctx := context.Background()
	r := New(Config{CallTimeout: 50 * time.Millisecond})
	defer r.Close()
	tr := loadOne(t, r, `
surfer.register{
    name = "Spin",
    translate = function(var, value)
        if value == "1" then while true do end end
        return "fine"
    end,
}`)

	_, err := tr.Translate(ctx, meta(1), value.MustBits("1"))
	require.Error(t, err)
	assert.True(t, errors.IsRuntimeFault(err))

	res, err := tr.Translate(ctx, meta(1), value.MustBits("0"))
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Text)
}

func TestMissingTranslatesAcceptsAll(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, `surfer.register{ name = "Any", translate = function() return "x" end }`)

	fit, err := tr.Validate(meta(123))
	require.NoError(t, err)
	assert.Equal(t, translator.NotRecommended, fit)
}

func TestBadReturnIsFault(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, `surfer.register{ name = "Bad", translate = function() return {} end }`)

	_, err := tr.Translate(context.Background(), meta(1), value.MustBits("1"))
	assert.True(t, errors.IsRuntimeFault(err))
}

func TestLoadFailure(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	dir := t.TempDir()

	_, err := r.LoadFile(context.Background(), writeScript(t, dir, "syntax.lua", "surfer.register{"))
	assert.True(t, errors.IsLoadFailure(err))

	_, err = r.LoadFile(context.Background(), writeScript(t, dir, "noname.lua", `surfer.register{ translate = function() end }`))
	assert.True(t, errors.IsLoadFailure(err))

	_, err = r.LoadFile(context.Background(), writeScript(t, dir, "partial.lua", `
surfer.register{ name = "Half", translate = function() return "h" end }
error("boom")`))
	assert.True(t, errors.IsLoadFailure(err))
	assert.Empty(t, r.Translators())
}

func TestDuplicateNameSkipped(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	dir := t.TempDir()

	first, err := r.LoadFile(context.Background(), writeScript(t, dir, "a.lua", `surfer.register{ name = "Same", translate = function() return "a" end }`))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := r.LoadFile(context.Background(), writeScript(t, dir, "b.lua", `surfer.register{ name = "Same", translate = function() return "b" end }`))
	require.NoError(t, err)
	assert.Empty(t, second)

	res, err := first[0].Translate(context.Background(), meta(1), value.MustBits("1"))
	require.NoError(t, err)
	assert.Equal(t, "a", res.Text)
}

func TestReloadKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	r := New(DefaultConfig())
	defer r.Close()
	dir := t.TempDir()
	path := writeScript(t, dir, "r.lua", `surfer.register{ name = "R", translate = function() return "v1" end }`)

	ts, err := r.LoadFile(ctx, path)
	require.NoError(t, err)
	tr := ts[0]

	writeScript(t, dir, "r.lua", `surfer.register{ name = "R", translate = function() return "v2" end }`)
	require.NoError(t, r.Reload(ctx))

	res, err := tr.Translate(ctx, meta(1), value.MustBits("1"))
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Text)

	writeScript(t, dir, "r.lua", `surfer.register{ name = "Other", translate = function() return "o" end }`)
	require.NoError(t, r.Reload(ctx))

	_, err = tr.Translate(ctx, meta(1), value.MustBits("1"))
	assert.True(t, errors.IsUnusable(err))

	live := r.Translators()
	require.Len(t, live, 1)
	assert.Equal(t, "Other", live[0].Name())
}

func TestSandboxedLibraries(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, `
surfer.register{
    name = "Libs",
    translate = function()
        local parts = { type(io), type(os), type(dofile), type(string.format), type(math.floor) }
        return table.concat(parts, ",")
    end,
}`)

	res, err := tr.Translate(context.Background(), meta(1), value.MustBits("1"))
	require.NoError(t, err)
	assert.Equal(t, "nil,nil,nil,function,function", res.Text)
}

func TestStringSamplesAndMeta(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()
	tr := loadOne(t, r, `
surfer.register{
    name = "Echo",
    translate = function(var, value)
        return var.encoding .. ":" .. value .. ":" .. tostring(var.fields and #var.fields or 0)
    end,
}`)

	m := value.VariableMeta{
		Ref:      value.Ref{Name: "s"},
		Encoding: value.EncodingString,
		Fields:   []value.Field{{Name: "a", Meta: value.VariableMeta{Width: 1}}},
	}
	res, err := tr.Translate(context.Background(), m, value.FromText("hello"))
	require.NoError(t, err)
	assert.Equal(t, "string:hello:1", res.Text)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	scripts := filepath.Join(dir, "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	writeScript(t, scripts, "z.lua", "")
	writeScript(t, scripts, "a.lua", "")
	writeScript(t, scripts, "readme.md", "")

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(scripts, "a.lua"), filepath.Join(scripts, "z.lua")}, paths)
}
