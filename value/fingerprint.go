package value

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies a sampled value for caching without storing it.
type Fingerprint uint64

// Fingerprint hashes the value together with its width and representation.
func (v SampledValue) Fingerprint() Fingerprint {
	h := xxhash.New()
	if v.isPayload {
		_, _ = h.WriteString("p:")
		_, _ = h.WriteString(v.payloadType)
		_, _ = h.WriteString(":")
		_, _ = h.Write(v.payload)
		return Fingerprint(h.Sum64())
	}
	_, _ = h.WriteString("b:")
	_, _ = h.WriteString(strconv.Itoa(len(v.bits)))
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(v.bits)
	return Fingerprint(h.Sum64())
}

func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 16)
}
