// Package translator defines the capability every value decoder implements,
// regardless of whether it runs natively, inside the bytecode sandbox or in
// the embedded script interpreter.
package translator

import (
	"context"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

// Domain is the execution trust domain of a translator.
type Domain uint8

const (
	Native Domain = iota
	Sandboxed
	Scripted
)

func (d Domain) String() string {
	switch d {
	case Sandboxed:
		return "sandboxed"
	case Scripted:
		return "scripted"
	default:
		return "native"
	}
}

// Fit is how well an applicable translator matches a variable.
type Fit uint8

const (
	// NotRecommended translators work but are a poor default.
	NotRecommended Fit = iota
	// Preferred translators match the variable's width and kind exactly.
	Preferred
)

func (f Fit) String() string {
	if f == Preferred {
		return "preferred"
	}
	return "not_recommended"
}

// Translator converts sampled values into display text.
//
// Validate must be pure and fast; it is called for every variable when a
// scope is loaded. A translator that cannot handle a variable returns an
// error for which errors.IsIncompatible holds. Any other error is treated as
// a fault of the translator itself.
//
// Translate must be a pure function of its inputs. Native and sandboxed
// translators are called concurrently; scripted ones never are.
type Translator interface {
	Name() string
	Domain() Domain
	Validate(meta value.VariableMeta) (Fit, error)
	Translate(ctx context.Context, meta value.VariableMeta, v value.SampledValue) (value.TranslationResult, error)
}

// Part is one member of a decomposed composite value.
type Part struct {
	// Translator suggests a translator for the part. Nil leaves the choice
	// to the registry's default selection for the part's metadata.
	Translator Translator

	// Hint names a translator to use when Translator is nil, e.g. one
	// suggested by a plugin that cannot hold a reference to the registry.
	Hint  string
	Name  string
	Meta  value.VariableMeta
	Value value.SampledValue
}

// Decomposer is implemented by translators that render composites by
// splitting them into independently translated parts.
type Decomposer interface {
	Decompose(ctx context.Context, meta value.VariableMeta, v value.SampledValue) ([]Part, error)
}

// Reloader is implemented by translators holding external state that can be
// refreshed, e.g. a plugin re-reading its lookup tables.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Func adapts plain functions to the Translator interface. It always runs
// in the native domain.
type Func struct {
	Accept func(meta value.VariableMeta) (Fit, error)
	Decode func(meta value.VariableMeta, v value.SampledValue) value.TranslationResult
	ID     string
}

func (f *Func) Name() string   { return f.ID }
func (f *Func) Domain() Domain { return Native }

func (f *Func) Validate(meta value.VariableMeta) (Fit, error) {
	return f.Accept(meta)
}

func (f *Func) Translate(_ context.Context, meta value.VariableMeta, v value.SampledValue) (value.TranslationResult, error) {
	return f.Decode(meta, v), nil
}

// Incompatible is a shorthand for rejecting a variable in Validate.
func Incompatible(name, format string, args ...any) (Fit, error) {
	return NotRecommended, errors.New(errors.PhaseValidate, errors.KindIncompatible).
		Translator(name).
		Detail(format, args...).
		Build()
}

// Faulted builds the warn-kind result shown in place of a value whose
// translation failed.
func Faulted(err error) value.TranslationResult {
	return value.Result("ERROR: "+errors.Message(err), value.Warn)
}
