package registry

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// verdict is the outcome of one Validate call on one variable node. It
// holds only while the node's metadata is unchanged.
type verdict struct {
	meta value.VariableMeta
	err  error
	fit  translator.Fit
}

// verdict returns t's verdict for node, calling Validate only on a miss.
// Errors other than Incompatible are kept too, which blacklists t for the
// node until the verdicts are reset.
func (r *Registry) verdict(key bindKey, t translator.Translator, node value.VariableMeta) (translator.Fit, error) {
	k := verdictKey{node: key, translator: t.Name()}
	r.verdictMu.RLock()
	vd, ok := r.verdicts[k]
	r.verdictMu.RUnlock()
	if ok && reflect.DeepEqual(vd.meta, node) {
		return vd.fit, vd.err
	}

	fit, err := t.Validate(node)
	r.verdictMu.Lock()
	r.verdicts[k] = verdict{meta: node, fit: fit, err: err}
	r.verdictMu.Unlock()

	if err != nil && !errors.IsIncompatible(err) {
		Logger().Warn("translator blacklisted for variable",
			zap.String("translator", t.Name()),
			zap.String("variable", key.variable),
			zap.String("field", key.field),
			zap.Error(err))
	}
	return fit, err
}

// resetVerdictsLocked drops every verdict and validates all translators
// against every node of the scope again. Callers hold the write lock, so
// no batch is running and no plugin or script call can be in flight.
func (r *Registry) resetVerdictsLocked() {
	r.verdictMu.Lock()
	clear(r.verdicts)
	r.verdictMu.Unlock()

	for _, meta := range r.scope {
		walkNodes(bindKey{variable: meta.Ref.String()}, meta, func(key bindKey, node value.VariableMeta) {
			for _, e := range r.entries {
				_, _ = r.verdict(key, e.Translator, node)
			}
		})
	}
}

// walkNodes visits a variable and every declared field below it.
func walkNodes(key bindKey, meta value.VariableMeta, fn func(bindKey, value.VariableMeta)) {
	fn(key, meta)
	for _, f := range meta.Fields {
		path := f.Name
		if key.field != "" {
			path = key.field + "." + f.Name
		}
		walkNodes(bindKey{variable: key.variable, field: path}, f.Meta, fn)
	}
}
