// Package builtin provides the native translators registered at process
// start, in a fixed declaration order that default selection relies on.
package builtin

import (
	"strings"

	"github.com/wippyai/wave-translate/instruction"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// Translator identities. These are persisted in sessions and must not change.
const (
	NameString         = "String"
	NameEnum           = "Enum"
	NameBit            = "Bit"
	NameClock          = "Clock"
	NameHexadecimal    = "Hexadecimal"
	NameOctal          = "Octal"
	NameBinary         = "Binary"
	NameGroupedBinary  = "Binary (with groups)"
	NameASCII          = "ASCII"
	NameUnsigned       = "Unsigned"
	NameSigned         = "Signed"
	NameUnsignedFixed  = "Unsigned fixed point"
	NameSignedFixed    = "Signed fixed point"
	NameFloat32        = "FP: 32-bit IEEE 754"
	NameFloat64        = "FP: 64-bit IEEE 754"
	NameFloat16        = "FP: 16-bit IEEE 754"
	NameBFloat16       = "FP: bfloat16"
	NameE5M2           = "FP: 8-bit (E5M2)"
	NameE4M3           = "FP: 8-bit (E4M3)"
	NamePosit32        = "Posit: 32-bit (two exponent bits)"
	NamePosit16        = "Posit: 16-bit (one exponent bit)"
	NamePosit8         = "Posit: 8-bit (no exponent bit)"
	NamePositQuire8    = "Posit: quire for 8-bit (no exponent bit)"
	NamePositQuire16   = "Posit: quire for 16-bit (one exponent bit)"
	NameLEB            = "LEBxxx"
	NameNumberOfOnes   = "Number of ones"
	NameLeadingOnes    = "Leading ones"
	NameTrailingOnes   = "Trailing ones"
	NameLeadingZeros   = "Leading zeros"
	NameTrailingZeros  = "Trailing zeros"
	NameIdenticalMSBs  = "Identical MSBs"
	NameComposite      = "Composite"
	DefaultTranslator  = NameHexadecimal
)

// All returns fresh instances of every built-in translator in declaration
// order. The order breaks ties between equally preferred translators.
func All() []translator.Translator {
	return []translator.Translator{
		stringTranslator(),
		enumTranslator(),
		bitTranslator(),
		clockTranslator(),
		radix(NameHexadecimal, 4),
		radix(NameOctal, 3),
		binary(NameBinary, false),
		binary(NameGroupedBinary, true),
		asciiTranslator(),
		unsigned(),
		signed(),
		unsignedFixed(),
		signedFixed(),
		float32Translator(),
		float64Translator(),
		float16Translator(),
		bfloat16Translator(),
		e5m2Translator(),
		e4m3Translator(),
		posit(NamePosit32, 32, 2),
		posit(NamePosit16, 16, 1),
		posit(NamePosit8, 8, 0),
		quire(NamePositQuire8, 32, 8, 0),
		quire(NamePositQuire16, 128, 16, 1),
		lebTranslator(),
		instruction.MustBuiltin(instruction.RV32I),
		instruction.MustBuiltin(instruction.RV32),
		instruction.MustBuiltin(instruction.RV64),
		instruction.MustBuiltin(instruction.MIPS),
		instruction.MustBuiltin(instruction.LA64),
		count(NameNumberOfOnes, countOnes),
		count(NameLeadingOnes, leading('1')),
		count(NameTrailingOnes, trailing('1')),
		count(NameLeadingZeros, leading('0')),
		count(NameTrailingZeros, trailing('0')),
		count(NameIdenticalMSBs, identicalMSBs),
		&Composite{},
	}
}

func isBitVector(meta value.VariableMeta) bool {
	return !meta.IsString() && meta.Kind != value.KindTransaction && meta.Width > 0
}

// anyBits accepts every bit vector as not recommended.
func anyBits(name string) func(value.VariableMeta) (translator.Fit, error) {
	return func(meta value.VariableMeta) (translator.Fit, error) {
		if !isBitVector(meta) {
			return translator.Incompatible(name, "not a bit vector")
		}
		return translator.NotRecommended, nil
	}
}

// exactWidth accepts only bit vectors of the given width.
func exactWidth(name string, width int) func(value.VariableMeta) (translator.Fit, error) {
	return func(meta value.VariableMeta) (translator.Fit, error) {
		if !isBitVector(meta) || meta.Width != width {
			return translator.Incompatible(name, "requires %d bits, got %d", width, meta.Width)
		}
		return translator.NotRecommended, nil
	}
}

// preferTypeNames prefers bit vectors whose HDL type name is in names.
func preferTypeNames(name string, names ...string) func(value.VariableMeta) (translator.Fit, error) {
	return func(meta value.VariableMeta) (translator.Fit, error) {
		if !isBitVector(meta) {
			return translator.Incompatible(name, "not a bit vector")
		}
		if matchTypeName(meta.TypeName, names) {
			return translator.Preferred, nil
		}
		return translator.NotRecommended, nil
	}
}

func matchTypeName(typeName string, names []string) bool {
	typeName = strings.ToLower(typeName)
	for _, n := range names {
		if typeName == n {
			return true
		}
	}
	return false
}

// strict wraps a numeric decoder: non-binary values never reach decode.
func strict(decode func(meta value.VariableMeta, v value.SampledValue) value.TranslationResult) func(value.VariableMeta, value.SampledValue) value.TranslationResult {
	return func(meta value.VariableMeta, v value.SampledValue) value.TranslationResult {
		if r, ok := value.Classify(v); ok {
			return r
		}
		if v.IsPayload() {
			return value.Result("INVALID", value.Warn)
		}
		return decode(meta, v)
	}
}
