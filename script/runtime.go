package script

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
)

// Config bounds script execution.
type Config struct {
	CallTimeout time.Duration
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{CallTimeout: 5 * time.Second}
}

// Runtime owns the shared interpreter state. All access is serialized by mu.
type Runtime struct {
	state   *lua.LState
	byName  map[string]*Translator
	cfg     Config
	loading string
	files   []string
	order   []*Translator
	pending []*Translator
	gen     uint64
	mu      sync.Mutex
}

// New creates a runtime with an empty interpreter.
func New(cfg Config) *Runtime {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	r := &Runtime{
		cfg:    cfg,
		byName: make(map[string]*Translator),
	}
	r.state = r.newState()
	return r
}

func (r *Runtime) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			panic(err)
		}
	}
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(r.print))
	r.installModule(L)
	return L
}

// LoadFile runs a script and returns the translators it registered.
func (r *Runtime) LoadFile(ctx context.Context, path string) ([]*Translator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.run(ctx, path); err != nil {
		for _, t := range r.pending {
			r.forget(t)
		}
		return nil, errors.LoadFailure(path, err)
	}
	r.files = append(r.files, path)
	return r.pending, nil
}

// Translators returns every live translator in registration order.
func (r *Runtime) Translators() []*Translator {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Translator, 0, len(r.order))
	for _, t := range r.order {
		if t.gen == r.gen {
			out = append(out, t)
		}
	}
	return out
}

// Reload discards the interpreter state and re-runs every loaded script in
// a fresh one. Translators keep their identity; those no longer registered
// by any script become unusable.
func (r *Runtime) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Close()
	r.state = r.newState()
	r.gen++

	var errs []error
	for _, path := range r.files {
		if err := r.run(ctx, path); err != nil {
			Logger().Warn("script reload failed", zap.String("source", path), zap.Error(err))
			errs = append(errs, errors.LoadFailure(path, err))
		}
	}
	for _, t := range r.order {
		if t.gen != r.gen {
			Logger().Info("script translator no longer registered",
				zap.String("translator", t.name),
				zap.String("source", t.source))
		}
	}
	return stderrors.Join(errs...)
}

// Close releases the interpreter.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Close()
}

func (r *Runtime) run(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fn, err := r.state.Load(strings.NewReader(string(src)), filepath.Base(path))
	if err != nil {
		return err
	}

	r.pending = nil
	r.loading = path
	defer func() { r.loading = "" }()

	_, err = r.call(ctx, "", fn, 0)
	return err
}

// call invokes fn under the call deadline and returns nret results. The
// caller holds mu.
func (r *Runtime) call(ctx context.Context, name string, fn *lua.LFunction, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	L := r.state
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	L.SetContext(cctx)
	defer L.RemoveContext()

	top := L.GetTop()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		L.SetTop(top)
		switch {
		case ctx.Err() != nil:
			return nil, errors.Cancelled(errors.PhaseScript, ctx.Err())
		case cctx.Err() != nil:
			return nil, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
				Translator(name).
				Detail("script exceeded %s", r.cfg.CallTimeout).
				Cause(cctx.Err()).
				Build()
		}
		return nil, errors.New(errors.PhaseScript, errors.KindRuntimeFault).
			Translator(name).
			Detail("%s", luaMessage(err)).
			Build()
	}

	ret := make([]lua.LValue, nret)
	for i := range nret {
		ret[i] = L.Get(i - nret)
	}
	L.Pop(nret)
	return ret, nil
}

func (r *Runtime) forget(t *Translator) {
	delete(r.byName, t.name)
	for i, o := range r.order {
		if o == t {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Runtime) print(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	Logger().Info(strings.Join(parts, "\t"), zap.String("source", r.loading))
	return 0
}

func luaMessage(err error) string {
	var apiErr *lua.ApiError
	if stderrors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

// Discover lists script files under dir/scripts in lexical order. A missing
// directory yields no scripts.
func Discover(dir string) ([]string, error) {
	root := filepath.Join(dir, "scripts")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.PhaseDiscover, errors.KindInvalidInput, err, "scan "+root)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
			continue
		}
		paths = append(paths, filepath.Join(root, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
