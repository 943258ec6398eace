package builtin

import (
	"context"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// Composite renders struct and array variables by decomposing them into
// their fields. The first field occupies the most significant bits.
type Composite struct{}

func (c *Composite) Name() string              { return NameComposite }
func (c *Composite) Domain() translator.Domain { return translator.Native }

func (c *Composite) Validate(meta value.VariableMeta) (translator.Fit, error) {
	if !meta.Decomposable() {
		return translator.Incompatible(NameComposite, "not a decomposable composite")
	}
	return translator.Preferred, nil
}

func (c *Composite) Decompose(_ context.Context, meta value.VariableMeta, v value.SampledValue) ([]translator.Part, error) {
	parts := make([]translator.Part, 0, len(meta.Fields))
	offset := 0
	for _, f := range meta.Fields {
		sub, err := v.Slice(offset, f.Meta.Width)
		if err != nil {
			return nil, err
		}
		fm := f.Meta
		if fm.Ref == (value.Ref{}) {
			fm.Ref = value.Ref{Scope: meta.Ref.String(), Name: f.Name}
		}
		parts = append(parts, translator.Part{Name: f.Name, Meta: fm, Value: sub})
		offset += f.Meta.Width
	}
	return parts, nil
}

// Translate renders every field in hexadecimal. The scheduler prefers
// Decompose so each field is translated by its own bound translator.
func (c *Composite) Translate(ctx context.Context, meta value.VariableMeta, v value.SampledValue) (value.TranslationResult, error) {
	parts, err := c.Decompose(ctx, meta, v)
	if err != nil {
		return value.TranslationResult{}, err
	}
	fields := make([]value.SubResult, len(parts))
	for i, p := range parts {
		r := mapToRadix(p.Value.Bits(), 4)
		if p.Meta.Decomposable() {
			r, err = c.Translate(ctx, p.Meta, p.Value)
			if err != nil {
				return value.TranslationResult{}, err
			}
		}
		fields[i] = value.SubResult{Name: p.Name, Result: r}
	}
	return value.Compose(Shape(meta), fields), nil
}

// Shape returns how a composite of this kind is rendered on one line.
func Shape(meta value.VariableMeta) value.Shape {
	if meta.Kind == value.KindArray {
		return value.ShapeArray
	}
	return value.ShapeStruct
}
