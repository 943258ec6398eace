package scheduler

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/wave-translate/cache"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/registry"
	"github.com/wippyai/wave-translate/source"
	"github.com/wippyai/wave-translate/translator"
	"github.com/wippyai/wave-translate/value"
)

// Config controls the worker pool and the cache.
type Config struct {
	// Workers bounds concurrent native and sandboxed translations.
	// Defaults to the number of CPUs.
	Workers int

	// CacheEntries bounds cached results per (variable, field, translator).
	// 0 means unbounded.
	CacheEntries int
}

// Stats reports scheduler activity.
type Stats struct {
	Cache      cache.Stats
	Batches    uint64
	Superseded uint64
	Calls      uint64
	Faults     uint64
}

type counters struct {
	batches    atomic.Uint64
	superseded atomic.Uint64
	calls      atomic.Uint64
	faults     atomic.Uint64
}

type scriptCall struct {
	fn   func()
	done chan struct{}
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	reg       *registry.Registry
	cache     *cache.Cache
	src       source.Source
	jobs      map[string]*Job
	scripts   chan scriptCall
	quit      chan struct{}
	flight    singleflight.Group
	stats     counters
	cfg       Config
	srcMu     sync.RWMutex
	jobsMu    sync.Mutex
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

// New creates a scheduler translating values of src through reg. src may
// be nil until SetSource is called.
func New(reg *registry.Registry, src source.Source, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	s := &Scheduler{
		reg:     reg,
		cache:   cache.New(cfg.CacheEntries),
		src:     src,
		jobs:    make(map[string]*Job),
		scripts: make(chan scriptCall),
		quit:    make(chan struct{}),
		cfg:     cfg,
	}
	reg.Subscribe(s.onRegistryEvent)
	if src != nil {
		reg.Rebind(metasOf(src))
	}

	s.wg.Add(1)
	go s.scriptWorker()
	return s
}

// Cache exposes the result cache, mainly for inspection.
func (s *Scheduler) Cache() *cache.Cache { return s.cache }

// Submit starts translating b and returns immediately.
func (s *Scheduler) Submit(ctx context.Context, b Batch) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		ID:       uuid.New(),
		Viewport: b.Viewport,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.jobsMu.Lock()
	if s.closed {
		s.jobsMu.Unlock()
		cancel()
		j.finish(nil, errors.New(errors.PhaseSchedule, errors.KindClosed).Detail("scheduler closed").Build())
		return j
	}
	if b.Viewport != "" {
		if prev := s.jobs[b.Viewport]; prev != nil {
			prev.cancel()
			s.stats.superseded.Add(1)
			Logger().Debug("batch superseded",
				zap.String("job", prev.ID.String()),
				zap.String("by", j.ID.String()),
				zap.String("viewport", b.Viewport))
		}
		s.jobs[b.Viewport] = j
	}
	s.wg.Add(1)
	s.jobsMu.Unlock()
	s.stats.batches.Add(1)

	go func() {
		defer s.wg.Done()
		defer cancel()

		res, err := s.run(ctx, j, b)

		if b.Viewport != "" {
			s.jobsMu.Lock()
			if s.jobs[b.Viewport] == j {
				delete(s.jobs, b.Viewport)
			}
			s.jobsMu.Unlock()
		}
		j.finish(res, err)
	}()
	return j
}

// TranslateBatch runs b and waits for its results.
func (s *Scheduler) TranslateBatch(ctx context.Context, b Batch) (*Results, error) {
	j := s.Submit(ctx, b)
	<-j.Done()
	return j.results, j.err
}

// SetSource replaces the trace. The cache moves to a new generation and
// keeps only the entries of visible variables whose metadata is unchanged;
// bindings are re-checked against the new metadata. It returns the new
// generation.
func (s *Scheduler) SetSource(src source.Source, visible []string) uint64 {
	s.srcMu.Lock()
	keep := make(map[string]bool)
	if s.src != nil {
		for _, v := range visible {
			before, ok := s.src.Meta(v)
			if !ok {
				continue
			}
			if after, ok := src.Meta(v); ok && reflect.DeepEqual(before, after) {
				keep[v] = true
			}
		}
	}
	s.src = src
	gen := s.cache.Reload()
	s.cache.Retain(keep)
	s.srcMu.Unlock()

	dropped := s.reg.Rebind(metasOf(src))
	Logger().Info("trace replaced",
		zap.Uint64("generation", gen),
		zap.Int("kept", len(keep)),
		zap.Strings("rebound", dropped))
	return gen
}

// metasOf lists the metadata of every variable of src.
func metasOf(src source.Source) []value.VariableMeta {
	vars := src.Variables()
	out := make([]value.VariableMeta, 0, len(vars))
	for _, v := range vars {
		m, ok := src.Meta(v)
		if !ok {
			continue
		}
		if m.Ref == (value.Ref{}) {
			m.Ref = value.ParseRef(v)
		}
		out = append(out, m)
	}
	return out
}

// Source returns the current trace, nil before one is set.
func (s *Scheduler) Source() source.Source {
	src, _ := s.snapshot()
	return src
}

func (s *Scheduler) snapshot() (source.Source, uint64) {
	s.srcMu.RLock()
	defer s.srcMu.RUnlock()
	return s.src, s.cache.Generation()
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cache:      s.cache.Stats(),
		Batches:    s.stats.batches.Load(),
		Superseded: s.stats.superseded.Load(),
		Calls:      s.stats.calls.Load(),
		Faults:     s.stats.faults.Load(),
	}
}

// Close cancels running jobs and waits for them and the script worker.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.jobsMu.Lock()
		s.closed = true
		for _, j := range s.jobs {
			j.cancel()
		}
		s.jobsMu.Unlock()
		close(s.quit)
		s.wg.Wait()
	})
}

func (s *Scheduler) onRegistryEvent(ev registry.Event) {
	switch ev.Kind {
	case registry.BindingChanged:
		if ev.Field == "" {
			s.cache.InvalidateVariable(ev.Variable)
			return
		}
		s.cache.InvalidateField(ev.Variable, ev.Field)
	case registry.TranslatorsChanged:
		for _, name := range ev.Translators {
			s.cache.InvalidateTranslator(name)
		}
	case registry.BindingsReset:
		s.cache.Clear()
	}
}

// scriptWorker is the only goroutine that calls into scripted translators.
func (s *Scheduler) scriptWorker() {
	defer s.wg.Done()
	for {
		select {
		case call := <-s.scripts:
			call.fn()
			close(call.done)
		case <-s.quit:
			return
		}
	}
}

// onScriptWorker runs fn on the script worker and waits for it. fn must
// itself honour ctx once started.
func (s *Scheduler) onScriptWorker(ctx context.Context, fn func()) error {
	call := scriptCall{fn: fn, done: make(chan struct{})}
	select {
	case s.scripts <- call:
	case <-ctx.Done():
		return errors.Cancelled(errors.PhaseSchedule, ctx.Err())
	case <-s.quit:
		return errors.New(errors.PhaseSchedule, errors.KindClosed).Detail("scheduler closed").Build()
	}
	<-call.done
	return nil
}

func (s *Scheduler) run(ctx context.Context, j *Job, b Batch) (*Results, error) {
	start := time.Now()
	log := Logger().With(zap.String("job", j.ID.String()))

	src, gen := s.snapshot()
	if src == nil {
		return nil, errors.InvalidInput(errors.PhaseSchedule, "no trace loaded")
	}

	view := s.reg.View()
	defer view.Close()

	bt := &batch{s: s, ctx: ctx, view: view, gen: gen, log: log}
	res := &Results{Generation: gen, Variables: make([]VariableResult, len(b.Requests))}
	var native, scripted []*unit
	for i, req := range b.Requests {
		for _, u := range bt.prepare(src, req, &res.Variables[i]) {
			if u.tr.Domain() == translator.Scripted {
				scripted = append(scripted, u)
			} else {
				native = append(native, u)
			}
		}
	}

	err := bt.execute(native, scripted)
	for i := range res.Variables {
		bt.fill(&res.Variables[i])
	}
	res.Stale = s.cache.Generation() != gen

	log.Debug("batch finished",
		zap.String("viewport", b.Viewport),
		zap.Int("requests", len(b.Requests)),
		zap.Int("native", len(native)),
		zap.Int("scripted", len(scripted)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return res, err
}
