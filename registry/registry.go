package registry

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/builtin"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/sandbox"
	"github.com/wippyai/wave-translate/script"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// SourceBuiltin is the Source of built-in translators.
const SourceBuiltin = "builtin"

// Config controls discovery and selection.
type Config struct {
	// SearchPaths are scanned in order; earlier paths win name collisions.
	SearchPaths []string

	// DefaultTranslator is tried after preferred translators.
	DefaultTranslator string

	Sandbox sandbox.Config
	Script  script.Config

	DisablePlugins bool
	DisableScripts bool
}

// Entry is a registered translator and where it came from.
type Entry struct {
	Translator translator.Translator
	Source     string
}

// Name is the translator identity.
func (e Entry) Name() string { return e.Translator.Name() }

// Applicable partitions the translators that accept a variable.
type Applicable struct {
	Preferred      []string
	NotRecommended []string
}

// All returns preferred then not recommended names.
func (a Applicable) All() []string {
	out := make([]string, 0, len(a.Preferred)+len(a.NotRecommended))
	out = append(out, a.Preferred...)
	return append(out, a.NotRecommended...)
}

// Contains reports whether name is applicable.
func (a Applicable) Contains(name string) bool {
	for _, n := range a.Preferred {
		if n == name {
			return true
		}
	}
	for _, n := range a.NotRecommended {
		if n == name {
			return true
		}
	}
	return false
}

type bindKey struct {
	variable string
	field    string
}

type verdictKey struct {
	node       bindKey
	translator string
}

// Registry is safe for concurrent use.
type Registry struct {
	sandbox   *sandbox.Runtime
	scripts   *script.Runtime
	byName    map[string]*Entry
	bindings  map[bindKey]string
	verdicts  map[verdictKey]verdict
	cfg       Config
	entries   []*Entry
	plugins   []*sandbox.Plugin
	scope     []value.VariableMeta
	listeners []Listener
	mu        sync.RWMutex
	verdictMu sync.RWMutex
	listenMu  sync.Mutex
}

// New creates a registry holding the built-in translators. Call Discover to
// add decoders, plugins and scripts from the search paths.
func New(ctx context.Context, cfg Config) (*Registry, error) {
	if cfg.DefaultTranslator == "" {
		cfg.DefaultTranslator = builtin.DefaultTranslator
	}
	r := &Registry{
		cfg:      cfg,
		byName:   make(map[string]*Entry),
		bindings: make(map[bindKey]string),
		verdicts: make(map[verdictKey]verdict),
	}
	for _, t := range builtin.All() {
		if err := r.add(t, SourceBuiltin); err != nil {
			return nil, err
		}
	}
	if err := r.openRuntimes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) openRuntimes(ctx context.Context) error {
	if !r.cfg.DisablePlugins {
		rt, err := sandbox.New(ctx, r.cfg.Sandbox)
		if err != nil {
			return err
		}
		r.sandbox = rt
	}
	if !r.cfg.DisableScripts {
		r.scripts = script.New(r.cfg.Script)
	}
	return nil
}

// Register adds a translator at the end of the order. A name that is
// already taken is rejected with a Duplicate error.
func (r *Registry) Register(t translator.Translator, source string) error {
	r.mu.Lock()
	err := r.add(t, source)
	if err == nil {
		r.resetVerdictsLocked()
	}
	r.mu.Unlock()
	if err == nil {
		r.notify(Event{Kind: TranslatorsChanged, Translators: []string{t.Name()}})
	}
	return err
}

func (r *Registry) add(t translator.Translator, source string) error {
	if first, ok := r.byName[t.Name()]; ok {
		err := errors.Duplicate(t.Name(), source)
		Logger().Warn("duplicate translator skipped",
			zap.String("translator", t.Name()),
			zap.String("source", source),
			zap.String("first", first.Source))
		return err
	}
	e := &Entry{Translator: t, Source: source}
	r.entries = append(r.entries, e)
	r.byName[t.Name()] = e
	return nil
}

// Entries returns every registered translator in registry order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	return out
}

// Lookup returns the translator registered under name.
func (r *Registry) Lookup(name string) (translator.Translator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view().Lookup(name)
}

// Applicable partitions the translators accepting meta.
func (r *Registry) Applicable(meta value.VariableMeta) Applicable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view().Applicable(meta)
}

// Default returns the translator selected for a variable or field.
func (r *Registry) Default(meta value.VariableMeta, field string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view().Default(meta, field)
}

// View takes the read lock until Close. Use it to resolve translators for a
// whole batch against one consistent registry state.
func (r *Registry) View() *View {
	r.mu.RLock()
	return r.view()
}

func (r *Registry) view() *View {
	return &View{r: r}
}

// Close releases plugin instances and the script interpreter.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeRuntimes(ctx)
}

func (r *Registry) closeRuntimes(ctx context.Context) error {
	var errs []error
	for _, p := range r.plugins {
		errs = append(errs, p.Close(ctx))
	}
	r.plugins = nil
	if r.sandbox != nil {
		errs = append(errs, r.sandbox.Close(ctx))
		r.sandbox = nil
	}
	if r.scripts != nil {
		r.scripts.Close()
		r.scripts = nil
	}
	return stderrors.Join(errs...)
}
