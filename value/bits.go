package value

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/wippyai/wave-translate/errors"
)

// Bit is a single bit state as it appears in a trace.
type Bit byte

const (
	Zero        Bit = '0'
	One         Bit = '1'
	Unknown     Bit = 'x'
	HighZ       Bit = 'z'
	DontCareBit Bit = '-'
	// std_logic states produced by VHDL traces
	Uninitialized Bit = 'u'
	WeakUnknown   Bit = 'w'
	WeakHigh      Bit = 'h'
	WeakLow       Bit = 'l'
)

func validBit(c byte) bool {
	switch Bit(c) {
	case Zero, One, Unknown, HighZ, DontCareBit, Uninitialized, WeakUnknown, WeakHigh, WeakLow:
		return true
	}
	return false
}

// SampledValue is an immutable sampled value. The zero value is an empty
// bit vector of width 0.
type SampledValue struct {
	bits        string
	payloadType string
	payload     []byte
	isPayload   bool
}

// FromBits creates a value from a bit string, most significant bit first.
// Letters are case-insensitive. A string shorter than width is extended the
// way VCD does: x and z extend themselves, everything else extends with 0.
// A width of 0 takes the string length.
func FromBits(bits string, width int) (SampledValue, error) {
	bits = strings.ToLower(bits)
	for i := 0; i < len(bits); i++ {
		if !validBit(bits[i]) {
			return SampledValue{}, errors.New(errors.PhaseValue, errors.KindInvalidInput).
				Detail("invalid bit %q at position %d", bits[i], i).
				Build()
		}
	}
	if width == 0 {
		width = len(bits)
	}
	if len(bits) > width {
		return SampledValue{}, errors.New(errors.PhaseValue, errors.KindInvalidInput).
			Detail("%d bits do not fit width %d", len(bits), width).
			Build()
	}
	return SampledValue{bits: extend(bits, width)}, nil
}

// MustBits is FromBits for literals known to be valid.
func MustBits(bits string) SampledValue {
	v, err := FromBits(bits, 0)
	if err != nil {
		panic(err)
	}
	return v
}

// FromUint creates a binary value of the given width from v.
func FromUint(v uint64, width int) SampledValue {
	s := fmt.Sprintf("%b", v)
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return SampledValue{bits: extend(s, width)}
}

// FromBig creates a binary value of the given width from a non-negative integer.
func FromBig(v *big.Int, width int) SampledValue {
	s := v.Text(2)
	if v.Sign() < 0 {
		s = new(big.Int).Abs(v).Text(2)
	}
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return SampledValue{bits: extend(s, width)}
}

// FromPayload wraps an opaque transaction payload. Payload values have no bits.
func FromPayload(typeName string, data []byte) SampledValue {
	cp := make([]byte, len(data))
	copy(cp, data)
	return SampledValue{payloadType: typeName, payload: cp, isPayload: true}
}

func extend(bits string, width int) string {
	if len(bits) >= width {
		return bits
	}
	pad := byte('0')
	if len(bits) > 0 && (bits[0] == 'x' || bits[0] == 'z') {
		pad = bits[0]
	}
	return strings.Repeat(string(pad), width-len(bits)) + bits
}

// Width returns the number of bits. Payload values report 0.
func (v SampledValue) Width() int { return len(v.bits) }

// Bits returns the bit string, most significant bit first.
func (v SampledValue) Bits() string { return v.bits }

// IsPayload reports whether v is an opaque transaction payload.
func (v SampledValue) IsPayload() bool { return v.isPayload }

// Payload returns the payload type name and a copy of its bytes.
func (v SampledValue) Payload() (string, []byte) {
	cp := make([]byte, len(v.payload))
	copy(cp, v.payload)
	return v.payloadType, cp
}

// Bit returns the state of bit i counted from the least significant bit.
func (v SampledValue) Bit(i int) Bit {
	return Bit(v.bits[len(v.bits)-1-i])
}

// IsBinary reports whether every bit is 0 or 1.
func (v SampledValue) IsBinary() bool {
	if v.isPayload {
		return false
	}
	for i := 0; i < len(v.bits); i++ {
		if v.bits[i] != '0' && v.bits[i] != '1' {
			return false
		}
	}
	return true
}

// Uint64 returns the value as an unsigned integer. ok is false when the
// value is not binary or wider than 64 bits.
func (v SampledValue) Uint64() (n uint64, ok bool) {
	if len(v.bits) > 64 || !v.IsBinary() {
		return 0, false
	}
	for i := 0; i < len(v.bits); i++ {
		n = n<<1 | uint64(v.bits[i]-'0')
	}
	return n, true
}

// Big returns the value as an unsigned big integer. ok is false when the
// value is not binary.
func (v SampledValue) Big() (*big.Int, bool) {
	if !v.IsBinary() {
		return nil, false
	}
	n := new(big.Int)
	if len(v.bits) == 0 {
		return n, true
	}
	n.SetString(v.bits, 2)
	return n, true
}

// Slice returns width bits starting offset bits from the most significant end.
func (v SampledValue) Slice(offset, width int) (SampledValue, error) {
	if offset < 0 || width < 0 || offset+width > len(v.bits) {
		return SampledValue{}, errors.OutOfBounds(errors.PhaseValue, nil, offset+width, len(v.bits))
	}
	return SampledValue{bits: v.bits[offset : offset+width]}, nil
}

// Equal reports whether two values are identical.
func (v SampledValue) Equal(o SampledValue) bool {
	if v.isPayload != o.isPayload {
		return false
	}
	if v.isPayload {
		return v.payloadType == o.payloadType && string(v.payload) == string(o.payload)
	}
	return v.bits == o.bits
}

func (v SampledValue) String() string {
	if v.isPayload {
		return fmt.Sprintf("%s(%d bytes)", v.payloadType, len(v.payload))
	}
	return v.bits
}

// FromText wraps a string sample.
func FromText(s string) SampledValue {
	return FromPayload(PayloadString, []byte(s))
}

// FromReal wraps a real-valued sample.
func FromReal(f float64) SampledValue {
	return FromPayload(PayloadReal, []byte(strconv.FormatFloat(f, 'g', -1, 64)))
}

// Payload type names used for string and real samples.
const (
	PayloadString = "string"
	PayloadReal   = "real"
)

// Text returns the textual content of string and real samples.
func (v SampledValue) Text() (string, bool) {
	if !v.isPayload || (v.payloadType != PayloadString && v.payloadType != PayloadReal) {
		return "", false
	}
	return string(v.payload), true
}
