package builtin

import (
	"math/big"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

func lebTranslator() translator.Translator {
	return &translator.Func{
		ID: NameLEB,
		Accept: func(meta value.VariableMeta) (translator.Fit, error) {
			if !isBitVector(meta) {
				return translator.Incompatible(NameLEB, "requires a bit vector, got %d bits", meta.Width)
			}
			return translator.NotRecommended, nil
		},
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			n, _ := v.Big()
			decoded, msg := decodeLEB(n)
			if msg != "" {
				return value.Result(msg+": "+groupBits(v.Bits(), 4), value.Warn)
			}
			return value.Result(decoded.String(), value.Normal)
		}),
	}
}

// decodeLEB decodes an unsigned LEB128 sequence stored with its final byte
// in the most significant position. Leading zero bytes are ignored and a
// width that is not a whole number of bytes reads as if zero padded.
func decodeLEB(n *big.Int) (*big.Int, string) {
	bytes := n.Bytes()
	if len(bytes) == 0 {
		return new(big.Int), ""
	}
	if bytes[0]&0x80 != 0 {
		return nil, "invalid MSB"
	}
	result := new(big.Int).SetUint64(uint64(bytes[0]))
	for _, b := range bytes[1:] {
		if (b&0x80 == 0) != (result.Sign() == 0) {
			return nil, "invalid flag"
		}
		result.Lsh(result, 7)
		result.Or(result, big.NewInt(int64(b&0x7f)))
	}
	return result, ""
}
