package registry

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// View is a read-locked registry. Obtained from Registry.View, it must be
// closed exactly once.
type View struct {
	r      *Registry
	closed bool
}

// Close releases the read lock.
func (v *View) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.r.mu.RUnlock()
}

// Lookup returns the translator registered under name.
func (v *View) Lookup(name string) (translator.Translator, bool) {
	e, ok := v.r.byName[name]
	if !ok {
		return nil, false
	}
	return e.Translator, true
}

// Applicable validates every translator against the variable.
func (v *View) Applicable(meta value.VariableMeta) Applicable {
	return v.applicable(bindKey{variable: meta.Ref.String()}, meta)
}

// ApplicableField validates every translator against a composite field.
func (v *View) ApplicableField(meta value.VariableMeta, field string) (Applicable, bool) {
	node, ok := meta.Field(field)
	if !ok {
		return Applicable{}, false
	}
	return v.applicable(bindKey{variable: meta.Ref.String(), field: field}, node), true
}

func (v *View) applicable(key bindKey, node value.VariableMeta) Applicable {
	var a Applicable
	for _, e := range v.r.entries {
		fit, ok := v.validate(key, e.Translator, node)
		if !ok {
			continue
		}
		if fit == translator.Preferred {
			a.Preferred = append(a.Preferred, e.Name())
		} else {
			a.NotRecommended = append(a.NotRecommended, e.Name())
		}
	}
	return a
}

// Default returns the name of the translator selected for a variable or
// one of its fields.
func (v *View) Default(meta value.VariableMeta, field string) (string, bool) {
	t, err := v.Resolve(meta, field)
	if err != nil {
		return "", false
	}
	return t.Name(), true
}

// Resolve returns the translator selected for a variable or field.
func (v *View) Resolve(meta value.VariableMeta, field string) (translator.Translator, error) {
	node, ok := meta.Field(field)
	if !ok {
		return nil, errors.New(errors.PhaseSelect, errors.KindNotFound).
			Variable(meta.Ref.String()).
			Path(pathOf(field)...).
			Detail("no such field").
			Build()
	}
	return v.choose(bindKey{variable: meta.Ref.String(), field: field}, node, nil, "")
}

// ResolvePart selects the translator for one part of a decomposed value.
// field is the part's full path below the root variable. A user binding on
// that path wins over the decomposer's suggestion.
func (v *View) ResolvePart(root value.VariableMeta, field string, p translator.Part) (translator.Translator, error) {
	return v.choose(bindKey{variable: root.Ref.String(), field: field}, p.Meta, p.Translator, p.Hint)
}

func (v *View) choose(key bindKey, node value.VariableMeta, suggested translator.Translator, hint string) (translator.Translator, error) {
	r := v.r
	if name, ok := r.bindings[key]; ok {
		if t, ok := v.accepts(key, name, node); ok {
			return t, nil
		}
		Logger().Debug("binding no longer applies, selecting default",
			zap.String("variable", key.variable),
			zap.String("field", key.field),
			zap.String("translator", name))
	}
	if suggested != nil {
		if _, ok := v.validate(key, suggested, node); ok {
			return suggested, nil
		}
	}
	if hint != "" {
		if t, ok := v.accepts(key, hint, node); ok {
			return t, nil
		}
	}

	var first, fallback translator.Translator
	for _, e := range r.entries {
		fit, ok := v.validate(key, e.Translator, node)
		if !ok {
			continue
		}
		if fit == translator.Preferred {
			return e.Translator, nil
		}
		if first == nil {
			first = e.Translator
		}
		if e.Name() == r.cfg.DefaultTranslator {
			fallback = e.Translator
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	if first != nil {
		return first, nil
	}
	return nil, errors.New(errors.PhaseSelect, errors.KindNotFound).
		Variable(key.variable).
		Path(pathOf(key.field)...).
		Detail("no applicable translator").
		Build()
}

func (v *View) accepts(key bindKey, name string, node value.VariableMeta) (translator.Translator, bool) {
	t, ok := v.Lookup(name)
	if !ok {
		return nil, false
	}
	if _, ok := v.validate(key, t, node); !ok {
		return nil, false
	}
	return t, true
}

// validate reports t's cached fit for node. Translators whose Validate
// failed with anything but Incompatible stay excluded for this node.
func (v *View) validate(key bindKey, t translator.Translator, node value.VariableMeta) (translator.Fit, bool) {
	fit, err := v.r.verdict(key, t, node)
	if err != nil {
		return translator.NotRecommended, false
	}
	return fit, true
}

func pathOf(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, ".")
}
