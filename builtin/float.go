package builtin

import (
	"math"
	"strconv"
	"strings"

	"github.com/x448/float16"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

var floatTypeNames = []string{"real", "shortreal", "float", "float32", "float64", "double"}

// floatAccept requires an exact width; a float-like HDL type makes the
// translator preferred.
func floatAccept(name string, width int) func(value.VariableMeta) (translator.Fit, error) {
	exact := exactWidth(name, width)
	return func(meta value.VariableMeta) (translator.Fit, error) {
		fit, err := exact(meta)
		if err != nil {
			return fit, err
		}
		if matchTypeName(meta.TypeName, floatTypeNames) || matchTypeName(meta.VarType, floatTypeNames) {
			return translator.Preferred, nil
		}
		return fit, nil
	}
}

func floatTranslator(name string, width int, decode func(n uint64) string) translator.Translator {
	return &translator.Func{
		ID:     name,
		Accept: floatAccept(name, width),
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			n, _ := v.Uint64()
			return value.Result(decode(n), value.Normal)
		}),
	}
}

func float32Translator() translator.Translator {
	return floatTranslator(NameFloat32, 32, func(n uint64) string {
		return shortestFloat(float64(math.Float32frombits(uint32(n))), 32)
	})
}

func float64Translator() translator.Translator {
	return floatTranslator(NameFloat64, 64, func(n uint64) string {
		return shortestFloat(math.Float64frombits(n), 64)
	})
}

func float16Translator() translator.Translator {
	return floatTranslator(NameFloat16, 16, func(n uint64) string {
		return shortestFloat(float64(float16.Frombits(uint16(n)).Float32()), 32)
	})
}

func bfloat16Translator() translator.Translator {
	return floatTranslator(NameBFloat16, 16, func(n uint64) string {
		return shortestFloat(float64(math.Float32frombits(uint32(n)<<16)), 32)
	})
}

// E5M2 is the upper byte of an IEEE half.
func e5m2Translator() translator.Translator {
	return floatTranslator(NameE5M2, 8, func(n uint64) string {
		return shortestFloat(float64(float16.Frombits(uint16(n)<<8).Float32()), 32)
	})
}

func e4m3Translator() translator.Translator {
	return floatTranslator(NameE4M3, 8, func(n uint64) string {
		return decodeE4M3(uint8(n))
	})
}

// decodeE4M3 follows the OCP 8-bit format: bias 7, no infinities, a single
// NaN encoding per sign.
func decodeE4M3(v uint8) string {
	mant := int(v & 7)
	exp := int(v>>3) & 15
	sign := 1.0
	if v&0x80 != 0 {
		sign = -1
	}
	switch {
	case exp == 15 && mant == 7:
		return "NaN"
	case exp == 0 && mant == 0:
		if sign < 0 {
			return "-0"
		}
		return "0"
	case exp == 0:
		return shortestFloat(sign*float64(mant)*math.Ldexp(1, -9), 32)
	default:
		return shortestFloat(sign*float64(8+mant)*math.Ldexp(1, exp-10), 32)
	}
}

// shortestFloat picks the shorter of plain decimal and exponent notation.
func shortestFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	dec := strconv.FormatFloat(f, 'f', -1, bitSize)
	exp := strconv.FormatFloat(f, 'e', -1, bitSize)
	// 1.5e+07 -> 1.5e7, 1e-07 -> 1e-7
	mant, e, _ := strings.Cut(exp, "e")
	neg := strings.HasPrefix(e, "-")
	e = strings.TrimLeft(strings.TrimLeft(e, "+-"), "0")
	if e == "" {
		e = "0"
	}
	if neg {
		e = "-" + e
	}
	exp = mant + "e" + e
	if len(dec) > len(exp) {
		return exp
	}
	return dec
}
