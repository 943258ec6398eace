// Package wavetranslate turns raw waveform samples into display text.
//
// A waveform viewer hands the engine sampled values (bit strings or opaque
// payloads) together with variable metadata. Translators turn each value
// into a TranslationResult: text, a ValueKind used for colouring and,
// for composite variables, nested field results. Translators come from
// three places:
//
//	builtin/      fixed set of radix, numeric, float, posit, count and struct translators
//	instruction/  TOML instruction decoders (RV32I built in, user decoders discovered)
//	sandbox/      WebAssembly plugins run under wazero with a two-function host surface
//	script/       Lua scripts registering translators into one shared interpreter
//
// The registry picks a default translator per variable and keeps user
// bindings; the scheduler translates batches of (variable, time range)
// requests, collapsing equal runs and caching results per value
// fingerprint.
//
//	value/        sampled values, variable metadata, results, fingerprints
//	translator/   the translator capability
//	registry/     registration, discovery, selection, bindings
//	cache/        generation-scoped result cache
//	scheduler/    batch translation, worker pool, script worker
//	source/       upstream trace interface and an in-memory YAML trace
//	theme/        value kind colours
//	config/       surfer-translate.toml
//	session/      persisted bindings
//	errors/       structured errors
//
// # Quick Start
//
//	cfg, err := config.Find(".")
//	if err != nil {
//		return err
//	}
//	eng, err := wavetranslate.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer eng.Close(ctx)
//
//	trace, err := source.LoadFile("trace.yaml")
//	if err != nil {
//		return err
//	}
//	eng.SetSource(trace, trace.Variables())
//
//	res, err := eng.TranslateBatch(ctx, scheduler.Batch{
//		Requests: []scheduler.Request{{Variable: "tb.cpu.state", From: 0, To: 100}},
//	})
//
// # Logging
//
// Packages log through zap and are silent by default. Install a logger per
// package with SetLogger, or for all of them with wavetranslate.SetLogger.
package wavetranslate
