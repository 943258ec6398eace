package script

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

var _ translator.Reloader = (*Translator)(nil)

// Translator is a translator registered by a script.
type Translator struct {
	rt         *Runtime
	translates *lua.LFunction
	translate  *lua.LFunction
	name       string
	source     string
	gen        uint64
}

func (t *Translator) Name() string              { return t.name }
func (t *Translator) Domain() translator.Domain { return translator.Scripted }

// Source is the script file that registered the translator.
func (t *Translator) Source() string {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()
	return t.source
}

// Reload re-runs every script of t's runtime in a fresh interpreter. The
// other translators of the runtime are reloaded with it.
func (t *Translator) Reload(ctx context.Context) error {
	return t.rt.Reload(ctx)
}

func (t *Translator) live() error {
	if t.gen != t.rt.gen {
		return errors.Unusable(errors.PhaseScript, t.name, "no longer registered by any script")
	}
	return nil
}

// Validate calls translates(var). A missing translates accepts everything
// as not recommended.
func (t *Translator) Validate(meta value.VariableMeta) (translator.Fit, error) {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()

	if err := t.live(); err != nil {
		return translator.NotRecommended, err
	}
	if t.translates == nil {
		return translator.NotRecommended, nil
	}

	ret, err := t.rt.call(context.Background(), t.name, t.translates, 1, varTable(t.rt.state, meta))
	if err != nil {
		return translator.NotRecommended, err
	}

	switch v := ret[0].(type) {
	case lua.LNumber:
		switch int(v) {
		case PreferenceNo:
			return translator.Incompatible(t.name, "script declined %s", meta.Ref)
		case PreferenceYes:
			return translator.NotRecommended, nil
		case PreferencePrefer:
			return translator.Preferred, nil
		}
	case lua.LBool:
		if v {
			return translator.NotRecommended, nil
		}
		return translator.Incompatible(t.name, "script declined %s", meta.Ref)
	case *lua.LNilType:
		return translator.Incompatible(t.name, "script declined %s", meta.Ref)
	}
	return translator.NotRecommended, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
		Translator(t.name).
		Variable(meta.Ref.String()).
		Detail("translates returned %s", ret[0].String()).
		Build()
}

// Translate calls translate(var, value) and expects text and an optional
// ValueKind back.
func (t *Translator) Translate(ctx context.Context, meta value.VariableMeta, v value.SampledValue) (value.TranslationResult, error) {
	t.rt.mu.Lock()
	defer t.rt.mu.Unlock()

	if err := t.live(); err != nil {
		return value.TranslationResult{}, err
	}

	L := t.rt.state
	ret, err := t.rt.call(ctx, t.name, t.translate, 2, varTable(L, meta), lua.LString(valueText(v)))
	if err != nil {
		return value.TranslationResult{}, err
	}

	var text string
	switch s := ret[0].(type) {
	case lua.LString:
		text = string(s)
	case lua.LNumber:
		text = s.String()
	default:
		return value.TranslationResult{}, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
			Translator(t.name).
			Detail("translate returned %s instead of text", ret[0].Type()).
			Build()
	}

	kind := value.Normal
	switch k := ret[1].(type) {
	case *lua.LNilType:
	case *lua.LUserData:
		vk, ok := k.Value.(value.ValueKind)
		if !ok {
			return value.TranslationResult{}, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
				Translator(t.name).
				Detail("translate returned a foreign userdata as kind").
				Build()
		}
		kind = vk
	case lua.LString:
		class, ok := value.ParseClass(string(k))
		if !ok || class == value.ClassCustom {
			return value.TranslationResult{}, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
				Translator(t.name).
				Detail("unknown value kind %q", string(k)).
				Build()
		}
		kind = value.ValueKind{Class: class}
	default:
		return value.TranslationResult{}, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
			Translator(t.name).
			Detail("translate returned %s as kind", ret[1].Type()).
			Build()
	}
	return value.Result(text, kind), nil
}

func varTable(L *lua.LState, meta value.VariableMeta) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(meta.Ref.Name))
	t.RawSetString("scope", lua.LString(meta.Ref.Scope))
	t.RawSetString("width", lua.LNumber(meta.Width))
	t.RawSetString("signed", lua.LBool(meta.Signed))
	t.RawSetString("kind", lua.LString(meta.Kind.String()))
	t.RawSetString("encoding", lua.LString(meta.Encoding.String()))
	if meta.TypeName != "" {
		t.RawSetString("type_name", lua.LString(meta.TypeName))
	}
	if meta.VarType != "" {
		t.RawSetString("var_type", lua.LString(meta.VarType))
	}
	if len(meta.EnumMap) > 0 {
		enum := L.NewTable()
		for bits, label := range meta.EnumMap {
			enum.RawSetString(bits, lua.LString(label))
		}
		t.RawSetString("enum", enum)
	}
	if len(meta.Fields) > 0 {
		fields := L.NewTable()
		for _, f := range meta.Fields {
			fm := f.Meta
			if fm.Ref.Name == "" {
				fm.Ref = value.Ref{Scope: meta.Ref.String(), Name: f.Name}
			}
			fields.Append(varTable(L, fm))
		}
		t.RawSetString("fields", fields)
	}
	return t
}

func valueText(v value.SampledValue) string {
	if s, ok := v.Text(); ok {
		return s
	}
	if v.IsPayload() {
		_, data := v.Payload()
		return string(data)
	}
	return v.Bits()
}
