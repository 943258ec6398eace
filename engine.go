package wavetranslate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/config"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/instruction"
	"github.com/wippyai/wave-translate/registry"
	"github.com/wippyai/wave-translate/sandbox"
	"github.com/wippyai/wave-translate/scheduler"
	"github.com/wippyai/wave-translate/script"
	"github.com/wippyai/wave-translate/session"
	"github.com/wippyai/wave-translate/source"
	"github.com/wippyai/wave-translate/theme"
	"github.com/wippyai/wave-translate/value"
)

// SetLogger installs l in every package that logs.
func SetLogger(l *zap.Logger) {
	registry.SetLogger(l.Named("registry"))
	sandbox.SetLogger(l.Named("sandbox"))
	script.SetLogger(l.Named("script"))
	scheduler.SetLogger(l.Named("scheduler"))
	instruction.SetLogger(l.Named("instruction"))
}

// Engine wires a registry, a scheduler and a theme together.
type Engine struct {
	reg       *registry.Registry
	sched     *scheduler.Scheduler
	cfg       *config.Config
	theme     theme.Theme
	discovery error
	mu        sync.Mutex
}

// Open builds the registry, discovers decoders, plugins and scripts in the
// configured search paths and starts the scheduler. Translators that fail
// to load are skipped; their errors are available from DiscoveryErrors.
func Open(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	th, err := cfg.ThemeColors()
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(ctx, cfg.Registry())
	if err != nil {
		return nil, err
	}
	e := &Engine{reg: reg, cfg: cfg, theme: th}
	if err := reg.Discover(ctx); err != nil {
		if errors.IsCancelled(err) {
			_ = reg.Close(ctx)
			return nil, err
		}
		e.discovery = err
	}
	e.sched = scheduler.New(reg, nil, cfg.Scheduler())
	return e, nil
}

// Registry returns the translator registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Scheduler returns the batch scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Theme returns the configured colours.
func (e *Engine) Theme() theme.Theme { return e.theme }

// DiscoveryErrors returns the joined load failures of the last discovery.
func (e *Engine) DiscoveryErrors() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discovery
}

// SetSource replaces the trace; see scheduler.Scheduler.SetSource.
func (e *Engine) SetSource(src source.Source, visible []string) uint64 {
	return e.sched.SetSource(src, visible)
}

func (e *Engine) meta(variable string) (value.VariableMeta, error) {
	src := e.sched.Source()
	if src == nil {
		return value.VariableMeta{}, errors.InvalidInput(errors.PhaseSchedule, "no trace loaded")
	}
	m, ok := src.Meta(variable)
	if !ok {
		return value.VariableMeta{}, errors.NotFound(errors.PhaseSelect, "variable", variable)
	}
	if m.Ref == (value.Ref{}) {
		m.Ref = value.ParseRef(variable)
	}
	return m, nil
}

// ApplicableTranslators lists the translators accepting a variable, or one
// of its fields when field is not empty.
func (e *Engine) ApplicableTranslators(variable, field string) (registry.Applicable, error) {
	m, err := e.meta(variable)
	if err != nil {
		return registry.Applicable{}, err
	}
	if field == "" {
		return e.reg.Applicable(m), nil
	}
	v := e.reg.View()
	defer v.Close()
	a, ok := v.ApplicableField(m, field)
	if !ok {
		return registry.Applicable{}, errors.NotFound(errors.PhaseSelect, "field", variable+"."+field)
	}
	return a, nil
}

// Translator returns the translator currently selected for a variable or
// field.
func (e *Engine) Translator(variable, field string) (string, error) {
	m, err := e.meta(variable)
	if err != nil {
		return "", err
	}
	name, ok := e.reg.Default(m, field)
	if !ok {
		return "", errors.NotFound(errors.PhaseSelect, "translator for", variable)
	}
	return name, nil
}

// SetTranslator binds name to a variable or field. An empty name clears
// the binding.
func (e *Engine) SetTranslator(variable, field, name string) error {
	m, err := e.meta(variable)
	if err != nil {
		return err
	}
	if name == "" {
		e.reg.ClearTranslator(m, field)
		return nil
	}
	return e.reg.SetTranslator(m, field, name)
}

// TranslateBatch translates b and waits for the result.
func (e *Engine) TranslateBatch(ctx context.Context, b scheduler.Batch) (*scheduler.Results, error) {
	return e.sched.TranslateBatch(ctx, b)
}

// ValueKindColor resolves the colour of a value kind; user is the
// variable's own colour or nil.
func (e *Engine) ValueKindColor(kind value.ValueKind, user *value.Color) value.Color {
	return e.theme.ValueKindColor(kind, user)
}

// LoadSession restores bindings from a session file.
func (e *Engine) LoadSession(path string) error { return session.Load(path, e.reg) }

// SaveSession writes the current bindings to a session file.
func (e *Engine) SaveSession(path string) error { return session.Save(path, e.reg) }

// Reload re-runs discovery: plugins and scripts are reloaded and cached
// results of changed translators are dropped.
func (e *Engine) Reload(ctx context.Context) error {
	err := e.reg.Reload(ctx)
	if !errors.IsCancelled(err) {
		e.mu.Lock()
		e.discovery = err
		e.mu.Unlock()
	}
	return err
}

// ReloadTranslator refreshes one translator's external state. Reloading a
// script translator re-runs every script. Cached results of the affected
// translators are dropped.
func (e *Engine) ReloadTranslator(ctx context.Context, name string) error {
	return e.reg.ReloadTranslator(ctx, name)
}

// Close stops the scheduler and releases plugin and script runtimes.
func (e *Engine) Close(ctx context.Context) error {
	e.sched.Close()
	return e.reg.Close(ctx)
}
