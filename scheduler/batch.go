package scheduler

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wave-translate/builtin"
	"github.com/wippyai/wave-translate/cache"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/registry"
	"github.com/wippyai/wave-translate/source"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// unit is one distinct raw value of one variable.
type unit struct {
	tr     translator.Translator
	meta   value.VariableMeta
	value  value.SampledValue
	result value.TranslationResult
	done   bool
}

type batch struct {
	s     *Scheduler
	ctx   context.Context
	view  *registry.View
	log   *zap.Logger
	units map[string]map[value.Fingerprint]*unit
	gen   uint64
}

// prepare resolves the translator of a request, collapses its changes into
// runs and returns the values not yet scheduled by this batch.
func (b *batch) prepare(src source.Source, req Request, vr *VariableResult) []*unit {
	vr.Variable = req.Variable
	meta, ok := src.Meta(req.Variable)
	if !ok {
		vr.Err = errors.New(errors.PhaseSchedule, errors.KindNotFound).
			Variable(req.Variable).
			Detail("no such variable").
			Build()
		return nil
	}
	if meta.Ref == (value.Ref{}) {
		meta.Ref = value.ParseRef(req.Variable)
	}

	tr, err := b.view.Resolve(meta, "")
	if err != nil {
		vr.Err = err
		return nil
	}
	vr.Translator = tr.Name()

	changes, err := src.Changes(req.Variable, req.From, req.To)
	if err != nil {
		vr.Err = err
		return nil
	}
	vr.Runs = collapse(changes, req.To)

	if b.units == nil {
		b.units = make(map[string]map[value.Fingerprint]*unit)
	}
	seen := b.units[req.Variable]
	if seen == nil {
		seen = make(map[value.Fingerprint]*unit)
		b.units[req.Variable] = seen
	}
	var out []*unit
	for _, r := range vr.Runs {
		fp := r.Value.Fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		u := &unit{tr: tr, meta: meta, value: r.Value}
		seen[fp] = u
		out = append(out, u)
	}
	return out
}

// collapse merges adjacent equal values into runs.
func collapse(changes []source.Change, to uint64) []Run {
	var runs []Run
	for _, c := range changes {
		n := len(runs)
		if n > 0 && runs[n-1].Value.Equal(c.Value) {
			continue
		}
		if n > 0 {
			runs[n-1].End = c.Time
		}
		runs = append(runs, Run{Start: c.Time, End: to, Value: c.Value})
	}
	return runs
}

// execute translates native and sandboxed units on the worker pool and
// scripted units one after another, concurrently with the pool.
func (b *batch) execute(native, scripted []*unit) error {
	scriptErr := make(chan error, 1)
	go func() {
		for _, u := range scripted {
			if err := b.unit(u); err != nil {
				scriptErr <- err
				return
			}
		}
		scriptErr <- nil
	}()

	var pool errgroup.Group
	pool.SetLimit(b.s.cfg.Workers)
	for _, u := range native {
		pool.Go(func() error { return b.unit(u) })
	}
	err := pool.Wait()
	if serr := <-scriptErr; err == nil {
		err = serr
	}
	return err
}

func (b *batch) unit(u *unit) error {
	r, _, err := b.node(u.meta, "", u.meta, u.tr, u.value)
	if err != nil {
		return err
	}
	u.result, u.done = r, true
	return nil
}

func (b *batch) fill(vr *VariableResult) {
	units := b.units[vr.Variable]
	for i := range vr.Runs {
		run := &vr.Runs[i]
		if u := units[run.Value.Fingerprint()]; u != nil && u.done {
			run.Result = u.result
		}
	}
}

type computed struct {
	result    value.TranslationResult
	cacheable bool
}

// node translates one value of a variable or of one of its fields. Results
// containing a fault are returned but never cached. The only error is a
// cancellation.
func (b *batch) node(root value.VariableMeta, field string, meta value.VariableMeta, tr translator.Translator, v value.SampledValue) (value.TranslationResult, bool, error) {
	if err := b.ctx.Err(); err != nil {
		return value.TranslationResult{}, false, errors.Cancelled(errors.PhaseSchedule, err)
	}
	key := cache.Key{
		Variable:    root.Ref.String(),
		Field:       field,
		Translator:  tr.Name(),
		Fingerprint: v.Fingerprint(),
	}
	if r, ok := b.s.cache.Get(key); ok {
		return r, true, nil
	}

	compute := func() (any, error) {
		r, cacheable, err := b.translate(root, field, meta, tr, v)
		if err != nil {
			return nil, err
		}
		if cacheable {
			b.s.cache.Put(b.gen, key, r)
		}
		return computed{result: r, cacheable: cacheable}, nil
	}

	flightKey := strconv.FormatUint(b.gen, 10) + "\x00" + key.Variable + "\x00" + field + "\x00" + key.Translator + "\x00" + key.Fingerprint.String()
	out, err, _ := b.s.flight.Do(flightKey, compute)
	if err != nil && errors.IsCancelled(err) && b.ctx.Err() == nil {
		// another batch led the call and was cancelled
		out, err = compute()
	}
	if err != nil {
		return value.TranslationResult{}, false, err
	}
	c := out.(computed)
	return c.result, c.cacheable, nil
}

func (b *batch) translate(root value.VariableMeta, field string, meta value.VariableMeta, tr translator.Translator, v value.SampledValue) (value.TranslationResult, bool, error) {
	if d, ok := tr.(translator.Decomposer); ok {
		var parts []translator.Part
		err := b.call(tr, func(ctx context.Context) (err error) {
			parts, err = d.Decompose(ctx, meta, v)
			return err
		})
		if err == nil {
			return b.compose(root, field, meta, parts)
		}
		if !errors.IsUnsupported(err) {
			return b.fault(root, field, tr, err)
		}
	}

	var r value.TranslationResult
	err := b.call(tr, func(ctx context.Context) (err error) {
		r, err = tr.Translate(ctx, meta, v)
		return err
	})
	if err != nil {
		return b.fault(root, field, tr, err)
	}
	return r, true, nil
}

func (b *batch) compose(root value.VariableMeta, field string, meta value.VariableMeta, parts []translator.Part) (value.TranslationResult, bool, error) {
	fields := make([]value.SubResult, len(parts))
	cacheable := true
	for i, p := range parts {
		path := p.Name
		if field != "" {
			path = field + "." + p.Name
		}
		tr, err := b.view.ResolvePart(root, path, p)
		if err != nil {
			fields[i] = value.SubResult{Name: p.Name, Result: translator.Faulted(err)}
			cacheable = false
			continue
		}
		r, ok, err := b.node(root, path, p.Meta, tr, p.Value)
		if err != nil {
			return value.TranslationResult{}, false, err
		}
		fields[i] = value.SubResult{Name: p.Name, Result: r}
		cacheable = cacheable && ok
	}
	return value.Compose(builtin.Shape(meta), fields), cacheable, nil
}

// fault turns a translator error into a warn result for this value. A
// cancellation of the batch is passed through instead.
func (b *batch) fault(root value.VariableMeta, field string, tr translator.Translator, err error) (value.TranslationResult, bool, error) {
	if errors.IsCancelled(err) || b.ctx.Err() != nil {
		return value.TranslationResult{}, false, errors.Cancelled(errors.PhaseSchedule, err)
	}
	b.s.stats.faults.Add(1)
	b.log.Warn("translation failed",
		zap.String("translator", tr.Name()),
		zap.String("variable", root.Ref.String()),
		zap.String("field", field),
		zap.Error(err))
	return translator.Faulted(err), false, nil
}

// call runs fn in the translator's execution domain.
func (b *batch) call(tr translator.Translator, fn func(ctx context.Context) error) error {
	b.s.stats.calls.Add(1)
	if tr.Domain() != translator.Scripted {
		return fn(b.ctx)
	}
	var err error
	if qerr := b.s.onScriptWorker(b.ctx, func() { err = fn(b.ctx) }); qerr != nil {
		return qerr
	}
	return err
}
