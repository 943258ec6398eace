package script

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

const kindTypeName = "surfer.ValueKind"

// Preference values returned by translates.
const (
	PreferenceNo     = 0
	PreferenceYes    = 1
	PreferencePrefer = 2
)

var namedKinds = []struct {
	name string
	kind value.ValueKind
}{
	{"Normal", value.Normal},
	{"Undefined", value.Undefined},
	{"HighImpedance", value.HighImpedance},
	{"Warn", value.Warn},
	{"DontCare", value.DontCare},
	{"Weak", value.Weak},
}

func (r *Runtime) installModule(L *lua.LState) {
	mt := L.NewTypeMetatable(kindTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(kindToString))
	L.SetField(mt, "__eq", L.NewFunction(kindEqual))

	kinds := L.NewTable()
	for _, nk := range namedKinds {
		L.SetField(kinds, nk.name, newKind(L, nk.kind))
	}
	L.SetField(kinds, "Custom", L.NewFunction(customKind))

	pref := L.NewTable()
	L.SetField(pref, "No", lua.LNumber(PreferenceNo))
	L.SetField(pref, "Yes", lua.LNumber(PreferenceYes))
	L.SetField(pref, "Prefer", lua.LNumber(PreferencePrefer))

	mod := L.NewTable()
	L.SetField(mod, "register", L.NewFunction(r.register))
	L.SetField(mod, "ValueKind", kinds)
	L.SetField(mod, "Preference", pref)
	L.SetGlobal("surfer", mod)
}

func newKind(L *lua.LState, k value.ValueKind) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = k
	L.SetMetatable(ud, L.GetTypeMetatable(kindTypeName))
	return ud
}

func checkKind(L *lua.LState, n int) value.ValueKind {
	ud := L.CheckUserData(n)
	if k, ok := ud.Value.(value.ValueKind); ok {
		return k
	}
	L.ArgError(n, "ValueKind expected")
	return value.ValueKind{}
}

func kindToString(L *lua.LState) int {
	L.Push(lua.LString(checkKind(L, 1).String()))
	return 1
}

func kindEqual(L *lua.LState) int {
	L.Push(lua.LBool(checkKind(L, 1) == checkKind(L, 2)))
	return 1
}

// customKind implements surfer.ValueKind.Custom(r, g, b[, a]).
func customKind(L *lua.LState) int {
	channel := func(n, v int) uint8 {
		if v < 0 || v > 255 {
			L.ArgError(n, "color channel out of range 0..255")
		}
		return uint8(v)
	}
	c := value.Color{
		R: channel(1, L.CheckInt(1)),
		G: channel(2, L.CheckInt(2)),
		B: channel(3, L.CheckInt(3)),
		A: channel(4, L.OptInt(4, 255)),
	}
	L.Push(newKind(L, value.Custom(c)))
	return 1
}

// register implements surfer.register{name=, translates=, translate=}.
func (r *Runtime) register(L *lua.LState) int {
	spec := L.CheckTable(1)

	name, ok := spec.RawGetString("name").(lua.LString)
	if !ok || name == "" {
		L.ArgError(1, "name must be a non-empty string")
		return 0
	}
	translate, ok := spec.RawGetString("translate").(*lua.LFunction)
	if !ok {
		L.ArgError(1, "translate must be a function")
		return 0
	}
	var translates *lua.LFunction
	switch fn := spec.RawGetString("translates").(type) {
	case *lua.LFunction:
		translates = fn
	case *lua.LNilType:
	default:
		L.ArgError(1, "translates must be a function")
		return 0
	}

	t, exists := r.byName[string(name)]
	switch {
	case exists && t.gen == r.gen:
		err := errors.Duplicate(string(name), r.loading)
		Logger().Warn("duplicate script translator",
			zap.String("translator", string(name)),
			zap.String("source", r.loading),
			zap.String("first", t.source),
			zap.Error(err))
		return 0
	case !exists:
		t = &Translator{rt: r, name: string(name)}
		r.byName[t.name] = t
		r.order = append(r.order, t)
	}
	t.source = r.loading
	t.translate = translate
	t.translates = translates
	t.gen = r.gen
	r.pending = append(r.pending, t)
	return 0
}
