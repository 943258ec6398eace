package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// Plugin is a translator backed by a compiled WebAssembly module.
type Plugin struct {
	rt       *Runtime
	compiled wazero.CompiledModule
	exports  map[string]bool
	idle     chan *instance
	slots    chan struct{}
	dead     atomic.Pointer[errors.Error]
	source   string
	name     string
	restarts atomic.Int32
}

type instance struct {
	mod    api.Module
	broken bool
}

func (i *instance) fn(name string) api.Function {
	return i.mod.ExportedFunction(name)
}

func (p *Plugin) Name() string              { return p.name }
func (p *Plugin) Domain() translator.Domain { return translator.Sandboxed }

// Source is the file the plugin was loaded from.
func (p *Plugin) Source() string { return p.source }

// Unusable returns the error that disabled the plugin, or nil.
func (p *Plugin) Unusable() error {
	if e := p.dead.Load(); e != nil {
		return e
	}
	return nil
}

// Validate asks the plugin's translates export. It runs under the call
// deadline with no caller context since validation is synchronous.
func (p *Plugin) Validate(meta value.VariableMeta) (translator.Fit, error) {
	doc, err := encodeMeta(meta)
	if err != nil {
		return translator.NotRecommended, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, "encode metadata")
	}

	ctx := context.Background()
	var verdict uint32
	err = p.with(ctx, func(inst *instance) error {
		ptr, _, err := p.stage(ctx, inst, doc, nil)
		if err != nil {
			return err
		}
		defer p.free(ctx, inst, ptr, len(doc))

		res, err := p.call(ctx, inst, exportTranslates, uint64(ptr), uint64(len(doc)))
		if err != nil {
			return err
		}
		verdict = api.DecodeU32(res[0])
		return nil
	})
	if err != nil {
		return translator.NotRecommended, err
	}

	switch verdict {
	case 0:
		return translator.Incompatible(p.name, "plugin declined %s", meta.Ref)
	case 1:
		return translator.NotRecommended, nil
	case 2:
		return translator.Preferred, nil
	default:
		return translator.NotRecommended, errors.New(errors.PhaseValidate, errors.KindRuntimeFault).
			Translator(p.name).
			Variable(meta.Ref.String()).
			Detail("translates returned %d", verdict).
			Build()
	}
}

func (p *Plugin) Translate(ctx context.Context, meta value.VariableMeta, v value.SampledValue) (value.TranslationResult, error) {
	doc, err := p.invoke(ctx, exportTranslate, meta, v)
	if err != nil {
		return value.TranslationResult{}, err
	}
	return decodeResult(p.name, doc)
}

// Decompose splits a value using the plugin's decompose export. Plugins
// without one report an Unsupported error and are translated whole.
func (p *Plugin) Decompose(ctx context.Context, meta value.VariableMeta, v value.SampledValue) ([]translator.Part, error) {
	if !p.exports[exportDecompose] {
		return nil, errors.Unsupported(errors.PhaseSandbox, p.name+" does not decompose")
	}
	doc, err := p.invoke(ctx, exportDecompose, meta, v)
	if err != nil {
		return nil, err
	}
	wparts, err := decodeParts(p.name, doc)
	if err != nil {
		return nil, err
	}

	parts := make([]translator.Part, 0, len(wparts))
	for _, wp := range wparts {
		sub, err := v.Slice(wp.Offset, wp.Width)
		if err != nil {
			return nil, err
		}
		fm, ok := meta.Field(wp.Name)
		if !ok || fm.Width != wp.Width {
			fm = value.VariableMeta{Width: wp.Width}
		}
		if fm.Ref == (value.Ref{}) {
			fm.Ref = value.Ref{Scope: meta.Ref.String(), Name: wp.Name}
		}
		parts = append(parts, translator.Part{Hint: wp.Translator, Name: wp.Name, Meta: fm, Value: sub})
	}
	return parts, nil
}

// Reload calls the reload export on idle instances, or drops them so fresh
// ones are instantiated on demand. It also resets the restart budget.
func (p *Plugin) Reload(ctx context.Context) error {
	var taken []*instance
	for len(taken) < cap(p.idle) {
		select {
		case inst := <-p.idle:
			taken = append(taken, inst)
			continue
		default:
		}
		break
	}

	var err error
	for _, inst := range taken {
		if err == nil && p.exports[exportReload] {
			_, err = p.call(ctx, inst, exportReload)
		} else if !p.exports[exportReload] {
			inst.broken = true
		}
		p.release(inst)
	}
	if err == nil {
		p.restarts.Store(0)
	}
	return err
}

// Close releases idle instances and the compiled module.
func (p *Plugin) Close(ctx context.Context) error {
	p.dead.CompareAndSwap(nil, errors.New(errors.PhaseSandbox, errors.KindClosed).Translator(p.name).Build())
	for {
		select {
		case inst := <-p.idle:
			_ = inst.mod.Close(ctx)
		default:
			return p.compiled.Close(ctx)
		}
	}
}

func (p *Plugin) spawn(ctx context.Context) (*instance, error) {
	name := fmt.Sprintf("%s#%d", filepath.Base(p.source), p.rt.seq.Add(1))
	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions("_initialize")

	ictx, cancel := context.WithTimeout(ctx, p.rt.cfg.CallTimeout)
	defer cancel()

	mod, err := p.rt.rt.InstantiateModule(ictx, p.compiled, cfg)
	if err != nil {
		return nil, err
	}
	inst := &instance{mod: mod}
	if p.exports[exportNew] {
		if _, err := inst.fn(exportNew).Call(ictx); err != nil {
			_ = mod.Close(ctx)
			return nil, err
		}
	}
	return inst, nil
}

func (p *Plugin) readName(ctx context.Context, inst *instance) (string, error) {
	res, err := p.call(ctx, inst, exportName)
	if err != nil {
		return "", err
	}
	b, err := p.readPacked(inst, res[0])
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.InvalidData(errors.PhaseLoad, []string{exportName}, "empty translator name")
	}
	return string(b), nil
}

func (p *Plugin) acquire(ctx context.Context) (*instance, error) {
	if err := p.Unusable(); err != nil {
		return nil, err
	}
	select {
	case inst := <-p.idle:
		return inst, nil
	default:
	}
	select {
	case inst := <-p.idle:
		return inst, nil
	case p.slots <- struct{}{}:
		inst, err := p.spawn(ctx)
		if err != nil {
			<-p.slots
			return nil, errors.RuntimeFault(errors.PhaseSandbox, p.name, err)
		}
		return inst, nil
	case <-ctx.Done():
		return nil, errors.Cancelled(errors.PhaseSandbox, ctx.Err())
	}
}

// release returns inst to the pool, or drops it and frees its slot when it
// can no longer be trusted.
func (p *Plugin) release(inst *instance) {
	if inst.broken || inst.mod.IsClosed() || p.dead.Load() != nil {
		_ = inst.mod.Close(context.Background())
		<-p.slots
		return
	}
	p.idle <- inst
}

func (p *Plugin) with(ctx context.Context, fn func(inst *instance) error) error {
	inst, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(inst)
	return fn(inst)
}

// invoke runs a (meta, value) -> packed document export.
func (p *Plugin) invoke(ctx context.Context, export string, meta value.VariableMeta, v value.SampledValue) ([]byte, error) {
	doc, err := encodeMeta(meta)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSandbox, errors.KindInvalidData, err, "encode metadata")
	}
	raw := valueBytes(v)

	var out []byte
	err = p.with(ctx, func(inst *instance) error {
		ptr, vptr, err := p.stage(ctx, inst, doc, raw)
		if err != nil {
			return err
		}
		defer p.free(ctx, inst, ptr, len(doc)+len(raw))

		res, err := p.call(ctx, inst, export, uint64(ptr), uint64(len(doc)), uint64(vptr), uint64(len(raw)))
		if err != nil {
			return err
		}
		out, err = p.readPacked(inst, res[0])
		return err
	})
	return out, err
}

// stage copies the arguments into one guest allocation.
func (p *Plugin) stage(ctx context.Context, inst *instance, meta, raw []byte) (uint32, uint32, error) {
	total := len(meta) + len(raw)
	res, err := p.call(ctx, inst, exportAlloc, uint64(total))
	if err != nil {
		return 0, 0, err
	}
	ptr := api.DecodeU32(res[0])
	vptr := ptr + uint32(len(meta))

	mem := inst.mod.Memory()
	if !mem.Write(ptr, meta) || !mem.Write(vptr, raw) {
		inst.broken = true
		return 0, 0, p.markUnusable(fmt.Sprintf("alloc returned [%d, +%d) outside guest memory", ptr, total))
	}
	return ptr, vptr, nil
}

func (p *Plugin) free(ctx context.Context, inst *instance, ptr uint32, size int) {
	if !p.exports[exportDealloc] || inst.broken || inst.mod.IsClosed() {
		return
	}
	if _, err := p.call(ctx, inst, exportDealloc, uint64(ptr), uint64(size)); err != nil {
		Logger().Debug("plugin dealloc failed", zap.String("translator", p.name), zap.Error(err))
	}
}

// readPacked copies the ptr<<32|len region out of guest memory.
func (p *Plugin) readPacked(inst *instance, packed uint64) ([]byte, error) {
	ptr, n := uint32(packed>>32), uint32(packed)
	buf, ok := inst.mod.Memory().Read(ptr, n)
	if !ok {
		inst.broken = true
		return nil, p.markUnusable(fmt.Sprintf("result [%d, +%d) outside guest memory", ptr, n))
	}
	out := make([]byte, n)
	copy(out, buf)
	return out, nil
}

// call runs one export under the call deadline and classifies failures.
func (p *Plugin) call(ctx context.Context, inst *instance, export string, params ...uint64) ([]uint64, error) {
	cctx, cancel := context.WithTimeout(ctx, p.rt.cfg.CallTimeout)
	defer cancel()

	res, err := inst.fn(export).Call(cctx, params...)
	if err == nil {
		return res, nil
	}

	if !inst.mod.IsClosed() {
		Logger().Debug("plugin trapped",
			zap.String("translator", p.name),
			zap.String("export", export),
			zap.Error(err))
		return nil, errors.RuntimeFault(errors.PhaseSandbox, p.name, err)
	}

	inst.broken = true
	if ctx.Err() != nil {
		return nil, errors.Cancelled(errors.PhaseSandbox, ctx.Err())
	}

	n := int(p.restarts.Add(1))
	if n > p.rt.cfg.MaxRestarts {
		return nil, p.markUnusable(fmt.Sprintf("%s exceeded %s %d times", export, p.rt.cfg.CallTimeout, n))
	}
	Logger().Warn("plugin call timed out, replacing instance",
		zap.String("translator", p.name),
		zap.String("export", export),
		zap.Int("restarts", n))
	return nil, errors.New(errors.PhaseSandbox, errors.KindRuntimeFault).
		Translator(p.name).
		Detail("%s exceeded %s", export, p.rt.cfg.CallTimeout).
		Cause(err).
		Build()
}

func (p *Plugin) markUnusable(detail string) error {
	if p.dead.CompareAndSwap(nil, errors.Unusable(errors.PhaseSandbox, p.name, detail)) {
		Logger().Error("plugin unusable",
			zap.String("translator", p.name),
			zap.String("source", p.source),
			zap.String("reason", detail))
	}
	return p.dead.Load()
}
