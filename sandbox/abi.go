package sandbox

import (
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wave-translate/errors"
)

// Export names of the plugin ABI.
const (
	exportMemory     = "memory"
	exportAlloc      = "alloc"
	exportDealloc    = "dealloc"
	exportName       = "name"
	exportTranslates = "translates"
	exportTranslate  = "translate"
	exportDecompose  = "decompose"
	exportReload     = "reload"
	exportNew        = "new"
)

const requiredABI = `
	alloc: func(size: u32) -> u32;
	name: func() -> u64;
	translates: func(meta-ptr: u32, meta-len: u32) -> u32;
	translate: func(meta-ptr: u32, meta-len: u32, value-ptr: u32, value-len: u32) -> u64;
`

const optionalABI = `
	dealloc: func(ptr: u32, size: u32);
	decompose: func(meta-ptr: u32, meta-len: u32, value-ptr: u32, value-len: u32) -> u64;
	reload: func();
	new: func();
`

var (
	requiredExports = mustParseABI(requiredABI)
	optionalExports = mustParseABI(optionalABI)
)

var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// signature is a core wasm function type.
type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func (s signature) String() string {
	return "(" + valueTypeNames(s.params) + ") -> (" + valueTypeNames(s.results) + ")"
}

func (s signature) matches(def api.FunctionDefinition) bool {
	return equalTypes(s.params, def.ParamTypes()) && equalTypes(s.results, def.ResultTypes())
}

func mustParseABI(text string) map[string]signature {
	sigs, err := parseABI(text)
	if err != nil {
		panic(err)
	}
	return sigs
}

// parseABI reads WIT function declarations and lowers their scalar
// parameter and result types to core value types.
func parseABI(text string) (map[string]signature, error) {
	sigs := make(map[string]signature)
	for _, m := range funcPattern.FindAllStringSubmatch(text, -1) {
		var sig signature
		if params := strings.TrimSpace(m[2]); params != "" {
			for _, p := range strings.Split(params, ",") {
				typStr := p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					typStr = p[idx+1:]
				}
				vt, err := lowerWitType(typStr)
				if err != nil {
					return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "abi param of "+m[1])
				}
				sig.params = append(sig.params, vt)
			}
		}
		if result := strings.TrimSpace(m[3]); result != "" {
			vt, err := lowerWitType(result)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "abi result of "+m[1])
			}
			sig.results = []api.ValueType{vt}
		}
		sigs[m[1]] = sig
	}
	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no functions in abi declaration")
	}
	return sigs, nil
}

func lowerWitType(s string) (api.ValueType, error) {
	t, err := wit.ParseType(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return api.ValueTypeI32, nil
	case wit.U64, wit.S64:
		return api.ValueTypeI64, nil
	case wit.F32:
		return api.ValueTypeF32, nil
	case wit.F64:
		return api.ValueTypeF64, nil
	default:
		return 0, errors.Unsupported(errors.PhaseLoad, "non-scalar abi type "+s)
	}
}

// checkExports verifies the module's exports against the ABI and returns the
// set of optional exports it provides.
func checkExports(compiled wazero.CompiledModule) (map[string]bool, error) {
	if _, ok := compiled.ExportedMemories()[exportMemory]; !ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindMissingExport).
			Path(exportMemory).
			Detail("plugin must export its linear memory").
			Build()
	}

	exports := compiled.ExportedFunctions()
	for name, sig := range requiredExports {
		def, ok := exports[name]
		if !ok {
			return nil, errors.New(errors.PhaseLoad, errors.KindMissingExport).
				Path(name).
				Detail("required function %s%s", name, sig).
				Build()
		}
		if !sig.matches(def) {
			return nil, errors.TypeMismatch(errors.PhaseLoad, name, sig.String(), signatureOf(def).String())
		}
	}

	present := make(map[string]bool)
	for name, sig := range optionalExports {
		def, ok := exports[name]
		if !ok {
			continue
		}
		if !sig.matches(def) {
			return nil, errors.TypeMismatch(errors.PhaseLoad, name, sig.String(), signatureOf(def).String())
		}
		present[name] = true
	}
	return present, nil
}

// checkImports rejects any function import outside the host allow-list.
func checkImports(compiled wazero.CompiledModule) error {
	var forbidden []string
	for _, fn := range compiled.ImportedFunctions() {
		mod, name, _ := fn.Import()
		if mod == HostModule {
			if sig, ok := hostExports[name]; ok && sig.matches(fn) {
				continue
			}
		}
		forbidden = append(forbidden, mod+"#"+name)
	}
	if len(forbidden) > 0 {
		return errors.NewForbiddenImportsError(forbidden)
	}
	return nil
}

func signatureOf(def api.FunctionDefinition) signature {
	return signature{params: def.ParamTypes(), results: def.ResultTypes()}
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

func valueTypeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}
