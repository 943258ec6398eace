package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
)

// Config bounds what a plugin may consume.
type Config struct {
	// WorkDir is reported by current_dir and anchors relative read_file
	// paths. Defaults to the process working directory.
	WorkDir string

	// CallTimeout bounds every call into a plugin.
	CallTimeout time.Duration

	// MemoryLimitPages caps each instance's linear memory (64 KiB pages).
	MemoryLimitPages uint32

	// MaxRestarts is how many instances a plugin may lose to the call
	// deadline before it is marked unusable.
	MaxRestarts int

	// Instances is the pool size per plugin.
	Instances int
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		CallTimeout:      2 * time.Second,
		MemoryLimitPages: 256,
		MaxRestarts:      3,
		Instances:        1,
	}
}

// Runtime owns the wazero runtime all plugins are compiled into.
type Runtime struct {
	rt  wazero.Runtime
	cfg Config
	seq atomic.Uint64
}

// New creates a runtime with the "surfer" host module instantiated.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Instances <= 0 {
		cfg.Instances = def.Instances
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}
	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(errors.PhaseSandbox, errors.KindInvalidInput, err, "resolve working directory")
		}
		cfg.WorkDir = wd
	}

	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	h := &host{workDir: cfg.WorkDir}
	if err := h.instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseSandbox, errors.KindLoadFailure, err, "instantiate host module")
	}

	return &Runtime{rt: rt, cfg: cfg}, nil
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Close releases every plugin compiled into this runtime.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Load compiles and instantiates the plugin at path.
func (r *Runtime) Load(ctx context.Context, path string) (*Plugin, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.LoadFailure(path, err)
	}
	return r.LoadBytes(ctx, path, bin)
}

// LoadBytes compiles bin, checks its imports and exports against the ABI,
// instantiates the first pool instance and reads the translator name.
// source is used for logging and instance naming.
func (r *Runtime) LoadBytes(ctx context.Context, source string, bin []byte) (*Plugin, error) {
	compiled, err := r.rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.LoadFailure(source, err)
	}

	if err := checkImports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.LoadFailure(source, err)
	}

	exports, err := checkExports(compiled)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.LoadFailure(source, err)
	}

	p := &Plugin{
		rt:       r,
		compiled: compiled,
		exports:  exports,
		source:   source,
		idle:     make(chan *instance, r.cfg.Instances),
		slots:    make(chan struct{}, r.cfg.Instances),
	}

	p.slots <- struct{}{}
	inst, err := p.spawn(ctx)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.LoadFailure(source, err)
	}

	name, err := p.readName(ctx, inst)
	if err != nil {
		_ = inst.mod.Close(ctx)
		_ = compiled.Close(ctx)
		return nil, errors.LoadFailure(source, err)
	}
	p.name = name
	p.idle <- inst

	Logger().Info("loaded plugin",
		zap.String("translator", name),
		zap.String("source", source),
		zap.Bool("decompose", exports[exportDecompose]))
	return p, nil
}

// Discover lists plugin files under dir/translators in lexical order. A
// missing directory yields no plugins.
func Discover(dir string) ([]string, error) {
	root := filepath.Join(dir, "translators")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.PhaseDiscover, errors.KindInvalidInput, err, "scan "+root)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wasm" {
			continue
		}
		paths = append(paths, filepath.Join(root, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
