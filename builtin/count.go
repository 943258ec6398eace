package builtin

import (
	"strconv"
	"strings"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

func count(name string, fn func(bits string) int) translator.Translator {
	return &translator.Func{
		ID:     name,
		Accept: anyBits(name),
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			return value.Result(strconv.Itoa(fn(v.Bits())), value.Normal)
		}),
	}
}

func countOnes(bits string) int {
	return strings.Count(bits, "1")
}

func leading(c byte) func(string) int {
	return func(bits string) int {
		n := 0
		for n < len(bits) && bits[n] == c {
			n++
		}
		return n
	}
}

func trailing(c byte) func(string) int {
	return func(bits string) int {
		n := 0
		for n < len(bits) && bits[len(bits)-1-n] == c {
			n++
		}
		return n
	}
}

// identicalMSBs counts the sign-extension bits, the MSB included.
func identicalMSBs(bits string) int {
	if bits == "" {
		return 0
	}
	return leading(bits[0])(bits)
}
