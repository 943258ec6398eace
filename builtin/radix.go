package builtin

import (
	"strconv"
	"strings"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

func radix(name string, groupBits int) translator.Translator {
	return &translator.Func{
		ID:     name,
		Accept: anyBits(name),
		Decode: func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			if v.IsPayload() {
				return value.Result("INVALID", value.Warn)
			}
			return mapToRadix(v.Bits(), groupBits)
		},
	}
}

// mapToRadix renders bits in groups of groupBits taken from the least
// significant end. A group holding a non-binary state renders as that state
// and taints the kind of the whole result.
func mapToRadix(bits string, groupBits int) value.TranslationResult {
	if rem := len(bits) % groupBits; rem != 0 {
		pad := byte('0')
		if len(bits) > 0 && (bits[0] == 'x' || bits[0] == 'z') {
			pad = bits[0]
		}
		bits = strings.Repeat(string(pad), groupBits-rem) + bits
	}

	var undef, highZ, dontCare, weak bool
	var b strings.Builder
	b.Grow(len(bits) / groupBits)
	for i := 0; i < len(bits); i += groupBits {
		g := bits[i : i+groupBits]
		switch {
		case strings.ContainsRune(g, 'x'):
			undef = true
			b.WriteByte('x')
		case strings.ContainsRune(g, 'z'):
			highZ = true
			b.WriteByte('z')
		case strings.ContainsRune(g, '-'):
			dontCare = true
			b.WriteByte('-')
		case strings.ContainsRune(g, 'u'):
			undef = true
			b.WriteByte('u')
		case strings.ContainsRune(g, 'w'):
			undef = true
			b.WriteByte('w')
		case strings.ContainsRune(g, 'h'):
			weak = true
			b.WriteByte('h')
		case strings.ContainsRune(g, 'l'):
			weak = true
			b.WriteByte('l')
		default:
			n, _ := strconv.ParseUint(g, 2, 8)
			b.WriteString(strconv.FormatUint(n, 16))
		}
	}

	kind := value.Normal
	switch {
	case undef:
		kind = value.Undefined
	case highZ:
		kind = value.HighImpedance
	case dontCare:
		kind = value.DontCare
	case weak:
		kind = value.Weak
	}
	return value.Result(b.String(), kind)
}

func binary(name string, grouped bool) translator.Translator {
	return &translator.Func{
		ID:     name,
		Accept: anyBits(name),
		Decode: func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			if v.IsPayload() {
				return value.Result("INVALID", value.Warn)
			}
			r := mapToRadix(v.Bits(), 1)
			if grouped {
				r.Text = groupBits(r.Text, 4)
			}
			return r
		},
	}
}

// groupBits separates s into space-delimited groups aligned to the least
// significant end.
func groupBits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	var parts []string
	head := len(s) % n
	if head > 0 {
		parts = append(parts, s[:head])
	}
	for i := head; i < len(s); i += n {
		parts = append(parts, s[i:i+n])
	}
	return strings.Join(parts, " ")
}

func asciiTranslator() translator.Translator {
	return &translator.Func{
		ID:     NameASCII,
		Accept: anyBits(NameASCII),
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			bits := v.Bits()
			if rem := len(bits) % 8; rem != 0 {
				bits = strings.Repeat("0", 8-rem) + bits
			}
			out := make([]byte, 0, len(bits)/8)
			for i := 0; i < len(bits); i += 8 {
				n, _ := strconv.ParseUint(bits[i:i+8], 2, 8)
				out = append(out, byte(n))
			}
			return value.Result(string(out), value.Normal)
		}),
	}
}

func bitTranslator() translator.Translator {
	return &translator.Func{
		ID: NameBit,
		Accept: func(meta value.VariableMeta) (translator.Fit, error) {
			if !isBitVector(meta) || meta.Width != 1 {
				return translator.Incompatible(NameBit, "requires 1 bit, got %d", meta.Width)
			}
			return translator.Preferred, nil
		},
		Decode: decodeSingleBit,
	}
}

// clockTranslator renders like Bit; consumers use its identity to draw edges.
func clockTranslator() translator.Translator {
	return &translator.Func{
		ID:     NameClock,
		Accept: exactWidth(NameClock, 1),
		Decode: decodeSingleBit,
	}
}

func decodeSingleBit(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
	if v.IsPayload() || v.Width() == 0 {
		return value.Result("INVALID", value.Warn)
	}
	return mapToRadix(v.Bits(), 1)
}
