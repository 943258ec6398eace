package builtin

import (
	"math"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

func posit(name string, width, es int) translator.Translator {
	return &translator.Func{
		ID:     name,
		Accept: exactWidth(name, width),
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			n, _ := v.Uint64()
			return value.Result(decodePosit(n, width, es), value.Normal)
		}),
	}
}

// decodePosit decodes an n-bit posit with es exponent bits.
func decodePosit(bits uint64, n, es int) string {
	mask := uint64(1)<<uint(n) - 1
	bits &= mask
	signBit := uint64(1) << uint(n-1)
	switch bits {
	case 0:
		return "0"
	case signBit:
		return "NaR"
	}

	negative := bits&signBit != 0
	if negative {
		bits = (^bits + 1) & mask
	}

	// regime: run of identical bits after the sign
	pos := n - 2
	first := (bits >> uint(pos)) & 1
	run := 0
	for pos >= 0 && (bits>>uint(pos))&1 == first {
		run++
		pos--
	}
	k := -run
	if first == 1 {
		k = run - 1
	}
	pos-- // terminating bit

	exp := 0
	for i := 0; i < es; i++ {
		exp <<= 1
		if pos >= 0 {
			exp |= int((bits >> uint(pos)) & 1)
			pos--
		}
	}

	frac := 1.0
	if pos >= 0 {
		fracBits := pos + 1
		f := bits & (uint64(1)<<uint(fracBits) - 1)
		frac += float64(f) / math.Ldexp(1, fracBits)
	}

	scale := k*(1<<uint(es)) + exp
	result := math.Ldexp(frac, scale)
	if negative {
		result = -result
	}
	return shortestFloat(result, 64)
}
