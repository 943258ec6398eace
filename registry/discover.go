package registry

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/instruction"
	"github.com/wippyai/wave-translate/sandbox"
	"github.com/wippyai/wave-translate/script"
	"github.com/wippyai/wave-translate/translator"
)

// Discover loads user instruction decoders, sandboxed plugins and scripts
// from the search paths. Individual failures are logged and returned
// joined; the translators that did load stay registered.
func (r *Registry) Discover(ctx context.Context) error {
	r.mu.Lock()
	added, err := r.discoverLocked(ctx)
	r.resetVerdictsLocked()
	r.mu.Unlock()
	if len(added) > 0 {
		r.notify(Event{Kind: TranslatorsChanged, Translators: added})
	}
	return err
}

func (r *Registry) discoverLocked(ctx context.Context) ([]string, error) {
	var (
		added []string
		errs  []error
	)
	register := func(t translator.Translator, source string) bool {
		if err := r.add(t, source); err != nil {
			return false
		}
		added = append(added, t.Name())
		return true
	}

	for _, dir := range r.cfg.SearchPaths {
		for _, d := range instruction.Discover(dir) {
			register(d, dir)
		}
	}

	if r.sandbox != nil {
		for _, dir := range r.cfg.SearchPaths {
			paths, err := sandbox.Discover(dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, path := range paths {
				if err := ctx.Err(); err != nil {
					return added, errors.Cancelled(errors.PhaseDiscover, err)
				}
				p, err := r.sandbox.Load(ctx, path)
				if err != nil {
					Logger().Warn("plugin not loaded", zap.String("path", path), zap.Error(err))
					errs = append(errs, err)
					continue
				}
				if !register(p, path) {
					_ = p.Close(ctx)
					continue
				}
				r.plugins = append(r.plugins, p)
			}
		}
	}

	if r.scripts != nil {
		for _, dir := range r.cfg.SearchPaths {
			paths, err := script.Discover(dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, path := range paths {
				ts, err := r.scripts.LoadFile(ctx, path)
				if err != nil {
					Logger().Warn("script not loaded", zap.String("path", path), zap.Error(err))
					errs = append(errs, err)
					continue
				}
				for _, t := range ts {
					register(t, path)
				}
			}
		}
	}

	Logger().Info("translator discovery finished",
		zap.Int("added", len(added)),
		zap.Int("failed", len(errs)),
		zap.Int("total", len(r.entries)))
	return added, stderrors.Join(errs...)
}

// Reload drops every discovered translator, restarts the plugin and script
// runtimes and discovers again. Bindings are kept by name.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	var removed []string
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Source == SourceBuiltin {
			kept = append(kept, e)
			continue
		}
		removed = append(removed, e.Name())
		delete(r.byName, e.Name())
	}
	r.entries = kept

	if err := r.closeRuntimes(ctx); err != nil {
		Logger().Warn("closing runtimes for reload", zap.Error(err))
	}
	if err := r.openRuntimes(ctx); err != nil {
		r.resetVerdictsLocked()
		r.mu.Unlock()
		return err
	}
	added, err := r.discoverLocked(ctx)
	r.resetVerdictsLocked()
	r.mu.Unlock()

	r.notify(Event{Kind: TranslatorsChanged, Translators: append(removed, added...)})
	return err
}

// ReloadTranslator asks one translator to refresh its external state, for
// translators that support it.
func (r *Registry) ReloadTranslator(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return errors.NotFound(errors.PhaseLoad, "translator", name)
	}
	rl, ok := e.Translator.(translator.Reloader)
	if !ok {
		r.mu.Unlock()
		return errors.Unsupported(errors.PhaseLoad, name+" cannot be reloaded")
	}
	err := rl.Reload(ctx)
	changed := []string{name}
	if _, ok := e.Translator.(*script.Translator); ok {
		for _, n := range r.syncScriptsLocked() {
			if n != name {
				changed = append(changed, n)
			}
		}
	}
	r.resetVerdictsLocked()
	r.mu.Unlock()

	r.notify(Event{Kind: TranslatorsChanged, Translators: changed})
	return err
}

// syncScriptsLocked registers translators a script reload added and
// returns the names of every script translator, since they all share the
// reloaded interpreter.
func (r *Registry) syncScriptsLocked() []string {
	if r.scripts == nil {
		return nil
	}
	var names []string
	for _, t := range r.scripts.Translators() {
		names = append(names, t.Name())
		if _, ok := r.byName[t.Name()]; ok {
			continue
		}
		if err := r.add(t, t.Source()); err == nil {
			Logger().Info("script translator added by reload",
				zap.String("translator", t.Name()),
				zap.String("source", t.Source()))
		}
	}
	return names
}
