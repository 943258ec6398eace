package builtin

import (
	"math/big"

	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// quire renders a posit quire: a two's complement fixed-point accumulator
// with the fraction bits of minpos squared. The value is rounded to the
// posit it accumulates for and printed like one.
func quire(name string, width, n, es int) translator.Translator {
	fracBits := 2 * (n - 2) << uint(es)
	return &translator.Func{
		ID:     name,
		Accept: exactWidth(name, width),
		Decode: strict(func(_ value.VariableMeta, v value.SampledValue) value.TranslationResult {
			q, _ := v.Big()
			bits := quireToPosit(q, v.Width(), fracBits, n, es)
			return value.Result(decodePosit(bits, n, es), value.Normal)
		}),
	}
}

// quireToPosit rounds the width-bit quire q to an n-bit posit with es
// exponent bits.
func quireToPosit(q *big.Int, width, fracBits, n, es int) uint64 {
	signBit := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	if q.Sign() == 0 {
		return 0
	}
	if q.Cmp(signBit) == 0 {
		return uint64(1) << uint(n-1)
	}
	m := new(big.Int).Set(q)
	negative := q.Cmp(signBit) > 0
	if negative {
		m.Sub(new(big.Int).Lsh(signBit, 1), q)
	}

	bits := encodePosit(m, fracBits, n, es)
	if negative {
		bits = (^bits + 1) & (uint64(1)<<uint(n) - 1)
	}
	return bits
}

// encodePosit returns the n-bit posit nearest to m * 2^-fracBits, m > 0,
// rounding ties to even. Magnitudes beyond the posit range saturate at
// maxpos or minpos; a nonzero value never rounds to zero.
func encodePosit(m *big.Int, fracBits, n, es int) uint64 {
	maxpos := uint64(1)<<uint(n-1) - 1
	limit := (n - 2) << uint(es)
	scale := m.BitLen() - 1 - fracBits
	switch {
	case scale >= limit:
		return maxpos
	case scale < -limit:
		return 1
	}

	k := scale >> uint(es)
	e := scale - k<<uint(es)

	body := new(big.Int)
	length := 0
	push := func(bit uint) {
		body.Lsh(body, 1)
		if bit != 0 {
			body.SetBit(body, 0, 1)
		}
		length++
	}
	if k >= 0 {
		for range k + 1 {
			push(1)
		}
		push(0)
	} else {
		for range -k {
			push(0)
		}
		push(1)
	}
	for i := es - 1; i >= 0; i-- {
		push(uint(e>>uint(i)) & 1)
	}
	frac := m.BitLen() - 1
	body.Lsh(body, uint(frac))
	body.Or(body, new(big.Int).SetBit(new(big.Int).Set(m), frac, 0))
	length += frac

	keep := n - 1
	var out uint64
	if length <= keep {
		out = new(big.Int).Lsh(body, uint(keep-length)).Uint64()
	} else {
		drop := uint(length - keep)
		out = new(big.Int).Rsh(body, drop).Uint64()
		guard := body.Bit(int(drop-1)) == 1
		sticky := false
		for i := 0; i < int(drop-1); i++ {
			if body.Bit(i) == 1 {
				sticky = true
				break
			}
		}
		if guard && (sticky || out&1 == 1) {
			out++
		}
	}
	switch {
	case out == 0:
		return 1
	case out > maxpos:
		return maxpos
	}
	return out
}
