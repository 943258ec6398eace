package registry

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

// Bindings maps variable -> field path -> translator name. The empty field
// path is the variable itself.
type Bindings map[string]map[string]string

// SetTranslator binds a translator to a variable or one of its fields. The
// translator must be registered and must accept the field.
func (r *Registry) SetTranslator(meta value.VariableMeta, field, name string) error {
	r.mu.Lock()
	changed, err := r.setLocked(meta, field, name)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		r.notify(Event{Kind: BindingChanged, Variable: meta.Ref.String(), Field: field})
	}
	return nil
}

func (r *Registry) setLocked(meta value.VariableMeta, field, name string) (bool, error) {
	variable := meta.Ref.String()
	e, ok := r.byName[name]
	if !ok {
		return false, errors.New(errors.PhaseBind, errors.KindNotFound).
			Translator(name).
			Variable(variable).
			Path(pathOf(field)...).
			Detail("translator not registered").
			Build()
	}
	node, ok := meta.Field(field)
	if !ok {
		return false, errors.New(errors.PhaseBind, errors.KindNotFound).
			Variable(variable).
			Path(pathOf(field)...).
			Detail("no such field").
			Build()
	}
	key := bindKey{variable: variable, field: field}
	if _, err := r.verdict(key, e.Translator, node); err != nil {
		return false, errors.New(errors.PhaseBind, errors.KindIncompatible).
			Translator(name).
			Variable(variable).
			Path(pathOf(field)...).
			Cause(err).
			Build()
	}

	if r.bindings[key] == name {
		return false, nil
	}
	r.bindings[key] = name
	return true, nil
}

// ClearTranslator removes an explicit binding so default selection applies.
func (r *Registry) ClearTranslator(meta value.VariableMeta, field string) {
	key := bindKey{variable: meta.Ref.String(), field: field}
	r.mu.Lock()
	_, had := r.bindings[key]
	delete(r.bindings, key)
	r.mu.Unlock()
	if had {
		r.notify(Event{Kind: BindingChanged, Variable: key.variable, Field: field})
	}
}

// Binding returns the explicit binding for a variable or field, if any.
// The name may no longer resolve.
func (r *Registry) Binding(variable, field string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bindings[bindKey{variable: variable, field: field}]
	return name, ok
}

// Snapshot copies all explicit bindings for persistence.
func (r *Registry) Snapshot() Bindings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Bindings)
	for k, name := range r.bindings {
		if out[k.variable] == nil {
			out[k.variable] = make(map[string]string)
		}
		out[k.variable][k.field] = name
	}
	return out
}

// Restore replaces all bindings. Names are not checked: a binding whose
// translator is missing or no longer validates is ignored at selection.
func (r *Registry) Restore(b Bindings) {
	r.mu.Lock()
	clear(r.bindings)
	for variable, fields := range b {
		for field, name := range fields {
			r.bindings[bindKey{variable: variable, field: field}] = name
		}
	}
	r.resetVerdictsLocked()
	r.mu.Unlock()
	r.notify(Event{Kind: BindingsReset})
}

// Rebind re-checks bindings after the trace was reloaded and makes metas
// the set of variables translators are validated against up front.
// Bindings for variables that still exist are kept if their translator
// still validates and dropped otherwise; bindings for variables absent from
// the new trace are kept untouched. Every dropped binding is reported as a
// BindingChanged event. It returns the variables that lost a binding.
func (r *Registry) Rebind(metas []value.VariableMeta) []string {
	r.mu.Lock()
	r.scope = metas
	r.resetVerdictsLocked()

	byVariable := make(map[string]value.VariableMeta, len(metas))
	for _, m := range metas {
		byVariable[m.Ref.String()] = m
	}

	var dropped []bindKey
	for key, name := range r.bindings {
		meta, ok := byVariable[key.variable]
		if !ok {
			continue
		}
		keep := false
		if node, ok := meta.Field(key.field); ok {
			if e, ok := r.byName[name]; ok {
				_, err := r.verdict(key, e.Translator, node)
				keep = err == nil
			}
		}
		if keep {
			continue
		}
		delete(r.bindings, key)
		dropped = append(dropped, key)
		Logger().Info("binding dropped after reload",
			zap.String("variable", key.variable),
			zap.String("field", key.field),
			zap.String("translator", name))
	}
	r.mu.Unlock()

	sort.Slice(dropped, func(i, j int) bool {
		if dropped[i].variable != dropped[j].variable {
			return dropped[i].variable < dropped[j].variable
		}
		return dropped[i].field < dropped[j].field
	})
	var variables []string
	for _, key := range dropped {
		r.notify(Event{Kind: BindingChanged, Variable: key.variable, Field: key.field})
		if n := len(variables); n == 0 || variables[n-1] != key.variable {
			variables = append(variables, key.variable)
		}
	}
	return variables
}
