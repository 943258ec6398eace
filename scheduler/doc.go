// Package scheduler turns batches of {variable, time range} requests into
// translated value runs.
//
// A batch snapshots the trace and its generation, then holds a registry
// View until it finishes, so every value of one variable is translated
// against the same trace and the same bindings. Adjacent equal samples
// collapse into one run and every distinct raw value is translated once.
//
// Native and sandboxed translators run on a bounded worker pool. Scripted
// translators share one interpreter, so their calls are funnelled through a
// single worker goroutine; a batch drains its scripted values alongside the
// pool, never inside it.
//
// Composite values are decomposed and each part is resolved, translated and
// cached on its own node, keyed by the field path below the root variable.
// A value whose translation fails renders as a warn result carrying the
// error text and is not cached.
package scheduler
