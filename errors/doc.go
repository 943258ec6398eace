// Package errors provides structured error types for the translation engine.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the translator and variable involved, a
// field path for composite values, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTranslate, errors.KindRuntimeFault).
//		Translator("my-decoder").
//		Variable("top.cpu.pc").
//		Detail("guest trapped").
//		Cause(trapErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Incompatible("Hexadecimal", "width 0")
//	err := errors.LoadFailure("plugin.wasm", cause)
//
// Incompatible is a routing signal rather than a failure: the registry uses
// it to exclude a translator from a variable's applicable set.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
