package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGBA color attached to Custom value kinds.
type Color struct {
	R, G, B, A uint8
}

// Hex renders the color as #rrggbb, appending alpha when not opaque.
func (c Color) Hex() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (Color, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return Color{}, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return Color{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, true
}

// Class is the tag of a ValueKind.
type Class uint8

const (
	ClassNormal Class = iota
	ClassUndefined
	ClassHighImpedance
	ClassWarn
	ClassDontCare
	ClassWeak
	ClassCustom
)

var classNames = [...]string{"normal", "undefined", "high_impedance", "warn", "dont_care", "weak", "custom"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// ParseClass maps a class name back to Class.
func ParseClass(s string) (Class, bool) {
	for i, n := range classNames {
		if n == s {
			return Class(i), true
		}
	}
	return 0, false
}

// ValueKind is the semantic category of a translated value. It is comparable.
type ValueKind struct {
	Color Color
	Class Class
}

var (
	Normal        = ValueKind{Class: ClassNormal}
	Undefined     = ValueKind{Class: ClassUndefined}
	HighImpedance = ValueKind{Class: ClassHighImpedance}
	Warn          = ValueKind{Class: ClassWarn}
	DontCare      = ValueKind{Class: ClassDontCare}
	Weak          = ValueKind{Class: ClassWeak}
)

// Custom returns a kind rendered in the given color.
func Custom(c Color) ValueKind {
	return ValueKind{Class: ClassCustom, Color: c}
}

func (k ValueKind) String() string {
	if k.Class == ClassCustom {
		return "custom(" + k.Color.Hex() + ")"
	}
	return k.Class.String()
}

// TranslationResult is the output of a translator for one value.
type TranslationResult struct {
	Text   string
	Fields []SubResult
	Kind   ValueKind
}

// SubResult is a named member of a composite result.
type SubResult struct {
	Name   string
	Result TranslationResult
}

// Result is a shorthand for a leaf result.
func Result(text string, kind ValueKind) TranslationResult {
	return TranslationResult{Text: text, Kind: kind}
}

// Field returns the sub-result at a dotted path.
func (r TranslationResult) Field(path string) (TranslationResult, bool) {
	if path == "" {
		return r, true
	}
	head, rest, _ := strings.Cut(path, ".")
	for _, f := range r.Fields {
		if f.Name == head {
			return f.Result.Field(rest)
		}
	}
	return TranslationResult{}, false
}

// Shape selects how a composite is rendered as a single line.
type Shape uint8

const (
	ShapeStruct Shape = iota
	ShapeTuple
	ShapeArray
)

// Compose builds a composite result from its members. The kind is Normal
// unless a member carries a non-normal kind, in which case the first such
// kind wins.
func Compose(shape Shape, fields []SubResult) TranslationResult {
	parts := make([]string, len(fields))
	kind := Normal
	for i, f := range fields {
		switch shape {
		case ShapeStruct:
			parts[i] = f.Name + ": " + f.Result.Text
		default:
			parts[i] = f.Result.Text
		}
		if kind == Normal && f.Result.Kind != Normal {
			kind = f.Result.Kind
		}
	}
	var open, closing string
	switch shape {
	case ShapeStruct:
		open, closing = "{", "}"
	case ShapeTuple:
		open, closing = "(", ")"
	default:
		open, closing = "[", "]"
	}
	return TranslationResult{
		Text:   open + strings.Join(parts, ", ") + closing,
		Kind:   kind,
		Fields: fields,
	}
}

// Classify returns the placeholder for a value that is not purely binary.
// ok is false for binary values. Precedence follows the most severe state:
// x, then z, then -, then u, then w, then h or l.
func Classify(v SampledValue) (r TranslationResult, ok bool) {
	if v.IsPayload() || v.IsBinary() {
		return TranslationResult{}, false
	}
	b := v.bits
	switch {
	case strings.ContainsRune(b, 'x'):
		return Result("UNDEF", Undefined), true
	case strings.ContainsRune(b, 'z'):
		return Result("HIGHIMP", HighImpedance), true
	case strings.ContainsRune(b, '-'):
		return Result("DON'T CARE", DontCare), true
	case strings.ContainsRune(b, 'u'):
		return Result("UNDEF", Undefined), true
	case strings.ContainsRune(b, 'w'):
		return Result("UNDEF WEAK", Undefined), true
	case strings.ContainsAny(b, "hl"):
		return Result("WEAK", Weak), true
	default:
		return Result("UNKNOWN VALUES", Undefined), true
	}
}
