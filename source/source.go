// Package source defines the read-only view of a loaded trace that the
// engine consumes, plus an in-memory trace loaded from YAML for tools and
// tests.
package source

import "github.com/wippyai/wave-translate/value"

// Change is a value that takes effect at Time and holds until the next one.
type Change struct {
	Value value.SampledValue
	Time  uint64
}

// Source is the upstream trace accessor. Implementations must be safe for
// concurrent reads; the engine never mutates a trace.
//
//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks
type Source interface {
	// Variables lists every variable path in a stable order.
	Variables() []string

	// Meta returns the static metadata of a variable.
	Meta(variable string) (value.VariableMeta, bool)

	// Sample returns the value held at time t.
	Sample(variable string, t uint64) (value.SampledValue, bool)

	// Changes returns the value held at from followed by every change in
	// (from, to). The first change is reported at time from; a change at
	// exactly to belongs to the next range.
	Changes(variable string, from, to uint64) ([]Change, error)
}
