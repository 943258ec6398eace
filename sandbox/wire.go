package sandbox

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// wireMeta is the variable metadata handed to translates, translate and
// decompose.
type wireMeta struct {
	Index    *wireIndex        `cbor:"index,omitempty"`
	EnumMap  map[string]string `cbor:"enum,omitempty"`
	Name     string            `cbor:"name"`
	Scope    string            `cbor:"scope"`
	Kind     string            `cbor:"kind"`
	Encoding string            `cbor:"encoding"`
	TypeName string            `cbor:"type_name,omitempty"`
	VarType  string            `cbor:"var_type,omitempty"`
	Fields   []wireField       `cbor:"fields,omitempty"`
	Width    int               `cbor:"width"`
	Signed   bool              `cbor:"signed"`
	Packed   bool              `cbor:"packed,omitempty"`
}

type wireIndex struct {
	MSB int `cbor:"msb"`
	LSB int `cbor:"lsb"`
}

type wireField struct {
	Name string   `cbor:"name"`
	Meta wireMeta `cbor:"meta"`
}

// wireResult is what translate returns. Kind is a value.Class name; Color is
// only read for "custom".
type wireResult struct {
	Text   string    `cbor:"text"`
	Kind   string    `cbor:"kind,omitempty"`
	Color  string    `cbor:"color,omitempty"`
	Fields []wireSub `cbor:"fields,omitempty"`
}

type wireSub struct {
	Name   string     `cbor:"name"`
	Result wireResult `cbor:"result"`
}

// wirePart is one element of the list decompose returns. Offset counts bits
// from the most significant end.
type wirePart struct {
	Name       string `cbor:"name"`
	Translator string `cbor:"translator,omitempty"`
	Offset     int    `cbor:"offset"`
	Width      int    `cbor:"width"`
}

func toWireMeta(m value.VariableMeta) wireMeta {
	w := wireMeta{
		EnumMap:  m.EnumMap,
		Name:     m.Ref.Name,
		Scope:    m.Ref.Scope,
		Kind:     m.Kind.String(),
		Encoding: m.Encoding.String(),
		TypeName: m.TypeName,
		VarType:  m.VarType,
		Width:    m.Width,
		Signed:   m.Signed,
		Packed:   m.Packed,
	}
	if m.Index != nil {
		w.Index = &wireIndex{MSB: m.Index.MSB, LSB: m.Index.LSB}
	}
	for _, f := range m.Fields {
		w.Fields = append(w.Fields, wireField{Name: f.Name, Meta: toWireMeta(f.Meta)})
	}
	return w
}

func encodeMeta(m value.VariableMeta) ([]byte, error) {
	return encMode.Marshal(toWireMeta(m))
}

// valueBytes is the raw value sent to the guest: the MSB-first bit string,
// or the payload bytes of an opaque value.
func valueBytes(v value.SampledValue) []byte {
	if v.IsPayload() {
		_, data := v.Payload()
		return data
	}
	return []byte(v.Bits())
}

func decodeResult(translatorName string, doc []byte) (value.TranslationResult, error) {
	var w wireResult
	if err := cbor.Unmarshal(doc, &w); err != nil {
		return value.TranslationResult{}, errors.New(errors.PhaseSandbox, errors.KindInvalidData).
			Translator(translatorName).
			Detail("decode translate result").
			Cause(err).
			Build()
	}
	return w.result(translatorName)
}

func (w wireResult) result(translatorName string) (value.TranslationResult, error) {
	kind, err := w.kind(translatorName)
	if err != nil {
		return value.TranslationResult{}, err
	}
	r := value.TranslationResult{Text: w.Text, Kind: kind}
	for _, f := range w.Fields {
		sub, err := f.Result.result(translatorName)
		if err != nil {
			return value.TranslationResult{}, err
		}
		r.Fields = append(r.Fields, value.SubResult{Name: f.Name, Result: sub})
	}
	return r, nil
}

func (w wireResult) kind(translatorName string) (value.ValueKind, error) {
	if w.Kind == "" {
		return value.Normal, nil
	}
	class, ok := value.ParseClass(w.Kind)
	if !ok {
		return value.ValueKind{}, errors.InvalidData(errors.PhaseSandbox, []string{"kind"}, "unknown value kind "+w.Kind)
	}
	if class != value.ClassCustom {
		return value.ValueKind{Class: class}, nil
	}
	c, ok := value.ParseColor(w.Color)
	if !ok {
		return value.ValueKind{}, errors.New(errors.PhaseSandbox, errors.KindInvalidData).
			Translator(translatorName).
			Path("color").
			Detail("invalid custom color %q", w.Color).
			Build()
	}
	return value.Custom(c), nil
}

func decodeParts(translatorName string, doc []byte) ([]wirePart, error) {
	var parts []wirePart
	if err := cbor.Unmarshal(doc, &parts); err != nil {
		return nil, errors.New(errors.PhaseSandbox, errors.KindInvalidData).
			Translator(translatorName).
			Detail("decode decompose result").
			Cause(err).
			Build()
	}
	return parts, nil
}
