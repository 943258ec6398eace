// Package value defines the canonical representation of sampled signal values
// and the static metadata of the variables they belong to.
//
// A SampledValue is an immutable, fixed-width sequence of bit states stored
// most significant bit first, or an opaque typed payload for transaction
// streams. VariableMeta describes a variable for the lifetime of a loaded
// trace: width, signedness hint, kind and optional composite fields.
//
// Translators produce a TranslationResult: display text plus a ValueKind that
// drives rendering. ValueKind is a closed set; only Custom carries data.
//
//	v, _ := value.FromBits("1x01", 4)
//	v.IsBinary()    // false
//	v.Fingerprint() // stable cache key
package value
