package sandbox

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wave-translate/errors"
	wb "github.com/wippyai/wave-translate/internal/wasmbuild"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

const (
	nameAddr   = 0x100
	resultAddr = 0x200
	partsAddr  = 0x280
	hostBuf    = 0x300
	allocAddr  = 0x400
)

var (
	sigAlloc      = wb.FuncType{Params: []wb.ValType{wb.I32}, Results: []wb.ValType{wb.I32}}
	sigName       = wb.FuncType{Results: []wb.ValType{wb.I64}}
	sigTranslates = wb.FuncType{Params: []wb.ValType{wb.I32, wb.I32}, Results: []wb.ValType{wb.I32}}
	sigTranslate  = wb.FuncType{Params: []wb.ValType{wb.I32, wb.I32, wb.I32, wb.I32}, Results: []wb.ValType{wb.I64}}
)

type pluginOpts struct {
	name       string
	verdict    int32
	result     wireResult
	parts      []wirePart
	hostName   bool
	badImport  bool
	skipExport string
	badAlloc   bool
}

// firstValueByteIs compares the first byte of the value argument.
func firstValueByteIs(c byte) []byte {
	return append(append(wb.LocalGet(2), wb.Load8U()...), append(wb.I32Const(int32(c)), wb.OpI32Eq)...)
}

// buildPlugin assembles a plugin that traps on values starting with 'x',
// spins forever on 'z', and returns an out-of-range pointer on 'u'.
func buildPlugin(t *testing.T, o pluginOpts) []byte {
	t.Helper()
	if o.name == "" {
		o.name = "test-plugin"
	}
	if o.result.Text == "" {
		o.result = wireResult{Text: "ok", Kind: "normal"}
	}
	resultDoc, err := encMode.Marshal(o.result)
	require.NoError(t, err)

	m := wb.New()
	var currentDir uint32
	if o.hostName {
		currentDir = m.Import(HostModule, "current_dir", wb.FuncType{Params: []wb.ValType{wb.I32, wb.I32}, Results: []wb.ValType{wb.I32}})
	}
	if o.badImport {
		m.Import("env", "abort", wb.FuncType{})
	}
	m.Memory(1, exportMemory)
	m.Data(nameAddr, []byte(o.name))
	m.Data(resultAddr, resultDoc)

	export := func(name string) string {
		if name == o.skipExport {
			return ""
		}
		return name
	}

	if o.badAlloc {
		m.Func(export(exportAlloc), sigAlloc, wb.I32Const(0x7FFFFFF0))
	} else {
		m.Func(export(exportAlloc), sigAlloc, wb.I32Const(allocAddr))
	}

	if o.hostName {
		m.Func(export(exportName), sigName,
			wb.I64Const(int64(hostBuf)<<32),
			wb.I32Const(hostBuf), wb.I32Const(256), wb.Call(currentDir),
			wb.Op(wb.OpI64ExtendI32U, wb.OpI64Or))
	} else {
		m.Func(export(exportName), sigName, wb.Packed(nameAddr, uint32(len(o.name))))
	}

	m.Func(export(exportTranslates), sigTranslates, wb.I32Const(o.verdict))

	m.Func(export(exportTranslate), sigTranslate,
		firstValueByteIs('x'), wb.If(wb.Op(wb.OpUnreachable)),
		firstValueByteIs('z'), wb.If(wb.Forever()),
		firstValueByteIs('u'), wb.If(wb.Packed(0xFFFF0000, 16), wb.Op(wb.OpReturn)),
		wb.Packed(resultAddr, uint32(len(resultDoc))))

	if o.parts != nil {
		partsDoc, err := encMode.Marshal(o.parts)
		require.NoError(t, err)
		m.Data(partsAddr, partsDoc)
		m.Func(exportDecompose, sigTranslate, wb.Packed(partsAddr, uint32(len(partsDoc))))
	}

	return m.Encode()
}

func newRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	ctx := context.Background()
	r, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(ctx) })
	return r
}

func byteMeta(width int) value.VariableMeta {
	return value.VariableMeta{Ref: value.Ref{Scope: "tb", Name: "data"}, Width: width}
}

func TestLoadAndTranslate(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "test.wasm", buildPlugin(t, pluginOpts{verdict: 2}))
	require.NoError(t, err)

	assert.Equal(t, "test-plugin", p.Name())
	assert.Equal(t, translator.Sandboxed, p.Domain())
	assert.Equal(t, "test.wasm", p.Source())

	fit, err := p.Validate(byteMeta(8))
	require.NoError(t, err)
	assert.Equal(t, translator.Preferred, fit)

	res, err := p.Translate(ctx, byteMeta(8), value.MustBits("01010101"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, value.Normal, res.Kind)
}

func TestValidateVerdicts(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	tests := []struct {
		verdict int32
		fit     translator.Fit
		check   func(error) bool
	}{
		{verdict: 0, check: errors.IsIncompatible},
		{verdict: 1, fit: translator.NotRecommended},
		{verdict: 2, fit: translator.Preferred},
		{verdict: 7, check: errors.IsRuntimeFault},
	}

	for _, tt := range tests {
		p, err := r.LoadBytes(ctx, "verdict.wasm", buildPlugin(t, pluginOpts{verdict: tt.verdict}))
		require.NoError(t, err)

		fit, err := p.Validate(byteMeta(8))
		if tt.check != nil {
			require.Error(t, err, "verdict %d", tt.verdict)
			assert.True(t, tt.check(err), "verdict %d: %v", tt.verdict, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.fit, fit)
	}
}

func TestCustomKindResult(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "custom.wasm", buildPlugin(t, pluginOpts{
		verdict: 1,
		result: wireResult{
			Text:  "state",
			Kind:  "custom",
			Color: "#ff8000",
			Fields: []wireSub{
				{Name: "lo", Result: wireResult{Text: "3", Kind: "warn"}},
			},
		},
	}))
	require.NoError(t, err)

	res, err := p.Translate(ctx, byteMeta(4), value.MustBits("0011"))
	require.NoError(t, err)
	assert.Equal(t, value.Custom(value.Color{R: 0xff, G: 0x80, A: 0xff}), res.Kind)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, "lo", res.Fields[0].Name)
	assert.Equal(t, value.Warn, res.Fields[0].Result.Kind)
}

func TestTrapFailsOnlyThatValue(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "trap.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)

	_, err = p.Translate(ctx, byteMeta(4), value.MustBits("x010"))
	require.Error(t, err)
	assert.True(t, errors.IsRuntimeFault(err))
	assert.False(t, errors.IsUnusable(err))
	assert.Equal(t, value.Warn, translator.Faulted(err).Kind)

	res, err := p.Translate(ctx, byteMeta(4), value.MustBits("1010"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.NoError(t, p.Unusable())
}

func TestTimeoutReplacesInstanceThenGivesUp(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, Config{CallTimeout: 50 * time.Millisecond, MaxRestarts: 1})

	p, err := r.LoadBytes(ctx, "spin.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("z0"))
	require.Error(t, err)
	assert.True(t, errors.IsRuntimeFault(err))
	assert.False(t, errors.IsUnusable(err))

	res, err := p.Translate(ctx, byteMeta(2), value.MustBits("01"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("z1"))
	require.Error(t, err)
	assert.True(t, errors.IsUnusable(err))

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("01"))
	assert.True(t, errors.IsUnusable(err))
}

func TestCallerCancelIsNotCounted(t *testing.T) {
	r := newRuntime(t, Config{CallTimeout: time.Minute, MaxRestarts: 0})

	p, err := r.LoadBytes(context.Background(), "spin.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("z0"))
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))

	res, err := p.Translate(context.Background(), byteMeta(2), value.MustBits("00"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

func TestOutOfBoundsResultMarksUnusable(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "oob.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("u0"))
	require.Error(t, err)
	assert.True(t, errors.IsUnusable(err))

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("00"))
	assert.True(t, errors.IsUnusable(err))
	assert.Error(t, p.Unusable())
}

func TestBadAllocMarksUnusable(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "alloc.wasm", buildPlugin(t, pluginOpts{verdict: 1, badAlloc: true}))
	require.NoError(t, err)

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("00"))
	require.Error(t, err)
	assert.True(t, errors.IsUnusable(err))
}

func TestForbiddenImportFailsLoad(t *testing.T) {
	r := newRuntime(t, DefaultConfig())

	_, err := r.LoadBytes(context.Background(), "env.wasm", buildPlugin(t, pluginOpts{badImport: true}))
	require.Error(t, err)
	assert.True(t, errors.IsLoadFailure(err))
	assert.True(t, stderrors.Is(err, &errors.ForbiddenImportsError{}))
	assert.Contains(t, err.Error(), "abort")
}

func TestHostCurrentDir(t *testing.T) {
	dir := t.TempDir()
	r := newRuntime(t, Config{WorkDir: dir})

	p, err := r.LoadBytes(context.Background(), "host.wasm", buildPlugin(t, pluginOpts{hostName: true}))
	require.NoError(t, err)
	assert.Equal(t, dir, p.Name())
}

func TestMissingExportFailsLoad(t *testing.T) {
	r := newRuntime(t, DefaultConfig())

	_, err := r.LoadBytes(context.Background(), "partial.wasm", buildPlugin(t, pluginOpts{skipExport: exportTranslate}))
	require.Error(t, err)
	assert.True(t, errors.IsLoadFailure(err))
	assert.Contains(t, err.Error(), string(errors.KindMissingExport))
	assert.Contains(t, err.Error(), exportTranslate)
}

func TestSignatureMismatchFailsLoad(t *testing.T) {
	m := wb.New()
	m.Memory(1, exportMemory)
	m.Func(exportAlloc, wb.FuncType{Params: []wb.ValType{wb.I64}, Results: []wb.ValType{wb.I32}}, wb.I32Const(0))
	m.Func(exportName, sigName, wb.I64Const(0))
	m.Func(exportTranslates, sigTranslates, wb.I32Const(0))
	m.Func(exportTranslate, sigTranslate, wb.I64Const(0))

	r := newRuntime(t, DefaultConfig())
	_, err := r.LoadBytes(context.Background(), "sig.wasm", m.Encode())
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(errors.KindTypeMismatch))
}

func TestGarbageFailsLoad(t *testing.T) {
	r := newRuntime(t, DefaultConfig())
	_, err := r.LoadBytes(context.Background(), "junk.wasm", []byte("not wasm"))
	require.Error(t, err)
	assert.True(t, errors.IsLoadFailure(err))
}

func TestDecompose(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "split.wasm", buildPlugin(t, pluginOpts{
		verdict: 1,
		parts: []wirePart{
			{Name: "hi", Translator: "Hexadecimal", Offset: 0, Width: 4},
			{Name: "lo", Offset: 4, Width: 4},
		},
	}))
	require.NoError(t, err)

	parts, err := p.Decompose(ctx, byteMeta(8), value.MustBits("10100101"))
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "hi", parts[0].Name)
	assert.Equal(t, "Hexadecimal", parts[0].Hint)
	assert.Equal(t, "1010", parts[0].Value.Bits())
	assert.Equal(t, "0101", parts[1].Value.Bits())
	assert.Equal(t, value.Ref{Scope: "tb.data", Name: "lo"}, parts[1].Meta.Ref)
}

func TestDecomposeUnsupported(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "plain.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)

	_, err = p.Decompose(ctx, byteMeta(8), value.MustBits("10100101"))
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindUnsupported, kind)
}

func TestReloadDropsIdleInstances(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "reload.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)

	require.NoError(t, p.Reload(ctx))

	res, err := p.Translate(ctx, byteMeta(2), value.MustBits("01"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

func TestClosedPluginRejectsCalls(t *testing.T) {
	ctx := context.Background()
	r := newRuntime(t, DefaultConfig())

	p, err := r.LoadBytes(ctx, "closed.wasm", buildPlugin(t, pluginOpts{verdict: 1}))
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))

	_, err = p.Translate(ctx, byteMeta(2), value.MustBits("01"))
	kind, _ := errors.KindOf(err)
	assert.Equal(t, errors.KindClosed, kind)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	plugins := filepath.Join(dir, "translators")
	require.NoError(t, os.MkdirAll(plugins, 0o755))
	for _, name := range []string{"b.wasm", "a.wasm", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(plugins, name), nil, 0o644))
	}

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(plugins, "a.wasm"), filepath.Join(plugins, "b.wasm")}, paths)

	paths, err = Discover(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.wasm")
	require.NoError(t, os.WriteFile(path, buildPlugin(t, pluginOpts{name: "from-file", verdict: 1}), 0o644))

	r := newRuntime(t, DefaultConfig())
	p, err := r.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", p.Name())

	_, err = r.Load(context.Background(), filepath.Join(dir, "absent.wasm"))
	assert.True(t, errors.IsLoadFailure(err))
}

func TestABIDeclarations(t *testing.T) {
	sig := requiredExports[exportTranslate]
	assert.Len(t, sig.params, 4)
	assert.Len(t, sig.results, 1)
	assert.Contains(t, optionalExports, exportDecompose)
	assert.Contains(t, hostExports, "read_file")

	_, err := parseABI("broken: func(a: list<u8>);")
	assert.Error(t, err)
}
