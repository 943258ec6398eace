package builtin

import (
	"math/big"
	"strings"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

var (
	unsignedTypeNames      = []string{"unresolved_unsigned", "unsigned"}
	signedTypeNames        = []string{"unresolved_signed", "signed"}
	unsignedFixedTypeNames = []string{"unresolved_ufixed", "ufixed"}
	signedFixedTypeNames   = []string{"unresolved_sfixed", "sfixed"}
	integerVarTypes        = []string{"integer", "int", "shortint", "longint", "byte"}
)

func unsigned() translator.Translator {
	return &translator.Func{
		ID:     NameUnsigned,
		Accept: preferTypeNames(NameUnsigned, unsignedTypeNames...),
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			n, _ := v.Big()
			return value.Result(n.String(), value.Normal)
		}),
	}
}

func signed() translator.Translator {
	base := preferTypeNames(NameSigned, signedTypeNames...)
	return &translator.Func{
		ID: NameSigned,
		Accept: func(meta value.VariableMeta) (translator.Fit, error) {
			fit, err := base(meta)
			if err != nil {
				return fit, err
			}
			if meta.Signed || matchTypeName(meta.VarType, integerVarTypes) {
				return translator.Preferred, nil
			}
			return fit, nil
		},
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			return value.Result(toSigned(v).String(), value.Normal)
		}),
	}
}

// toSigned interprets a binary value as two's complement.
func toSigned(v value.SampledValue) *big.Int {
	n, _ := v.Big()
	w := v.Width()
	if w > 0 && v.Bit(w-1) == value.One {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(w)))
	}
	return n
}

func unsignedFixed() translator.Translator {
	return &translator.Func{
		ID:     NameUnsignedFixed,
		Accept: preferTypeNames(NameUnsignedFixed, unsignedFixedTypeNames...),
		Decode: strict(func(meta value.VariableMeta, v value.SampledValue) value.TranslationResult {
			n, _ := v.Big()
			return value.Result(ufixed(n, fractionBits(meta)), value.Normal)
		}),
	}
}

func signedFixed() translator.Translator {
	return &translator.Func{
		ID:     NameSignedFixed,
		Accept: preferTypeNames(NameSignedFixed, signedFixedTypeNames...),
		Decode: strict(func(meta value.VariableMeta, v value.SampledValue) value.TranslationResult {
			n := toSigned(v)
			frac := fractionBits(meta)
			if n.Sign() < 0 {
				return value.Result("-"+ufixed(n.Neg(n), frac), value.Normal)
			}
			return value.Result(ufixed(n, frac), value.Normal)
		}),
	}
}

// fractionBits is the scaling exponent taken from the declared index: a
// signal declared [7:-4] has four fraction bits.
func fractionBits(meta value.VariableMeta) int {
	if meta.Index == nil {
		return 0
	}
	return -meta.Index.LSB
}

// ufixed renders n / 2^frac exactly. A negative frac scales up.
func ufixed(n *big.Int, frac int) string {
	switch {
	case frac < 0:
		return new(big.Int).Lsh(n, uint(-frac)).String()
	case frac == 0:
		return n.String()
	}

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(frac)), big.NewInt(1))
	integer := new(big.Int).Rsh(n, uint(frac))
	rem := new(big.Int).And(n, mask)
	if rem.Sign() == 0 {
		return integer.String()
	}

	var digits strings.Builder
	ten := big.NewInt(10)
	digit := new(big.Int)
	for i := 0; i < frac && rem.Sign() != 0; i++ {
		rem.Mul(rem, ten)
		digit.Rsh(rem, uint(frac))
		digits.WriteString(digit.String())
		rem.And(rem, mask)
	}
	return integer.String() + "." + digits.String()
}
