// Package registry owns metric instances. Metrics are grouped into contexts
// and keyed by the name derived from their base name and tags; looking a key
// up creates the metric the first time and returns the same instance on
// every later call.
package registry

import (
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/reservoir"
	"github.com/go-kit/appmetrics/metrics/tags"
)

// DefaultContext is the context metrics land in when their options name
// none.
const DefaultContext = "application"

// Registry holds every metric created through its providers. It is safe for
// concurrent use.
type Registry struct {
	clock            clock.Clock
	defaultReservoir reservoir.Factory
	defaultContext   string
	logger           log.Logger

	mtx      sync.RWMutex
	contexts map[string]*metricContext
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used by timers, meters and the default reservoir.
// By default the registry uses the real clock.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithDefaultReservoir sets the reservoir factory for timers and histograms
// whose options don't name one. By default it is an exponentially decaying
// reservoir of size 1028.
func WithDefaultReservoir(f reservoir.Factory) Option {
	return func(r *Registry) { r.defaultReservoir = f }
}

// WithDefaultContext renames the default context.
func WithDefaultContext(name string) Option {
	return func(r *Registry) { r.defaultContext = name }
}

// WithLogger sets the logger for creation events. By default nothing is
// logged.
func WithLogger(logger log.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New returns an empty registry.
func New(options ...Option) *Registry {
	r := &Registry{
		defaultContext: DefaultContext,
		logger:         log.NewNopLogger(),
		contexts:       map[string]*metricContext{},
	}
	for _, option := range options {
		option(r)
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.defaultReservoir == nil {
		r.defaultReservoir = reservoir.DefaultFactory(r.clock)
	}
	return r
}

// Clock returns the registry's clock.
func (r *Registry) Clock() clock.Clock { return r.clock }

// metricContext is one namespace. A derived name maps to at most one metric
// across all kinds.
type metricContext struct {
	mtx     sync.RWMutex
	entries map[string]*entry
	removed bool // unlinked from the registry; no more inserts
}

type entry struct {
	kind             metrics.Kind
	name             string
	base             string
	tags             tags.Tags
	unit             metrics.Unit
	resetOnReporting bool
	metric           interface{ Reset() }
}

// getOrCreate returns the metric of the given kind stored under the key
// derived from o and t, calling build to create it if the key is absent.
// build runs at most once per key, under the lock guarding the key. A
// context exists only once it holds a metric, so a rejected creation
// leaves the registry as it was.
func (r *Registry) getOrCreate(kind metrics.Kind, o Options, t tags.Tags, build func() (interface{ Reset() }, error)) (interface{ Reset() }, error) {
	o.Tags = o.Tags.Merge(t)
	if err := o.validate(); err != nil {
		level.Warn(r.logger).Log("msg", "metric rejected", "kind", kind, "name", o.Name, "err", err)
		return nil, err
	}
	ctxName := o.Context
	if ctxName == "" {
		ctxName = r.defaultContext
	}
	name := o.Tags.AsMetricName(o.Name)
	newEntry := func(m interface{ Reset() }) *entry {
		return &entry{
			kind:             kind,
			name:             name,
			base:             o.Name,
			tags:             o.Tags,
			unit:             o.MeasurementUnit,
			resetOnReporting: o.ResetOnReporting,
			metric:           m,
		}
	}

	for {
		r.mtx.RLock()
		c, ok := r.contexts[ctxName]
		r.mtx.RUnlock()

		var (
			m    interface{ Reset() }
			err  error
			done bool
		)
		if ok {
			m, done, err = r.createIn(c, ctxName, name, kind, build, newEntry)
		} else {
			m, done, err = r.createContext(ctxName, name, kind, build, newEntry)
		}
		if done {
			return m, err
		}
		// The context was removed or created concurrently; look again.
	}
}

// createIn looks name up in c, creating it if absent. done is false when c
// has been removed from the registry.
func (r *Registry) createIn(c *metricContext, ctxName, name string, kind metrics.Kind, build func() (interface{ Reset() }, error), newEntry func(interface{ Reset() }) *entry) (m interface{ Reset() }, done bool, err error) {
	c.mtx.RLock()
	e, ok := c.entries[name]
	removed := c.removed
	c.mtx.RUnlock()
	if removed {
		return nil, false, nil
	}
	if ok {
		m, err = r.existing(ctxName, e, kind)
		return m, true, err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.removed {
		return nil, false, nil
	}
	if e, ok := c.entries[name]; ok {
		m, err = r.existing(ctxName, e, kind)
		return m, true, err
	}
	if m, err = r.build(ctxName, name, kind, build); err != nil {
		return nil, true, err
	}
	c.entries[name] = newEntry(m)
	return m, true, nil
}

// createContext creates the context ctxName holding a single new metric.
// done is false when another caller created the context first.
func (r *Registry) createContext(ctxName, name string, kind metrics.Kind, build func() (interface{ Reset() }, error), newEntry func(interface{ Reset() }) *entry) (m interface{ Reset() }, done bool, err error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.contexts[ctxName]; ok {
		return nil, false, nil
	}
	if m, err = r.build(ctxName, name, kind, build); err != nil {
		return nil, true, err
	}
	r.contexts[ctxName] = &metricContext{entries: map[string]*entry{name: newEntry(m)}}
	return m, true, nil
}

func (r *Registry) build(ctxName, name string, kind metrics.Kind, build func() (interface{ Reset() }, error)) (interface{ Reset() }, error) {
	m, err := build()
	if err != nil {
		level.Warn(r.logger).Log("msg", "metric rejected", "context", ctxName, "kind", kind, "name", name, "err", err)
		return nil, err
	}
	level.Debug(r.logger).Log("msg", "metric created", "context", ctxName, "kind", kind, "name", name)
	return m, nil
}

func (r *Registry) existing(ctxName string, e *entry, kind metrics.Kind) (interface{ Reset() }, error) {
	if e.kind != kind {
		err := errors.Wrapf(metrics.ErrDuplicateRegistration, "%s %q in context %q", e.kind, e.name, ctxName)
		level.Warn(r.logger).Log("msg", "metric rejected", "context", ctxName, "kind", kind, "name", e.name, "err", err)
		return nil, err
	}
	return e.metric, nil
}

// Contexts returns the names of all contexts, sorted.
func (r *Registry) Contexts() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveContext drops a context and every metric in it. Instances already
// handed out keep working but are no longer reported; asking for them again
// creates new ones in a fresh context.
func (r *Registry) RemoveContext(name string) {
	r.mtx.Lock()
	c, ok := r.contexts[name]
	delete(r.contexts, name)
	r.mtx.Unlock()
	if ok {
		c.remove()
	}
}

// Clear drops every context.
func (r *Registry) Clear() {
	r.mtx.Lock()
	old := r.contexts
	r.contexts = map[string]*metricContext{}
	r.mtx.Unlock()
	for _, c := range old {
		c.remove()
	}
}

func (c *metricContext) remove() {
	c.mtx.Lock()
	c.removed = true
	c.mtx.Unlock()
}

// Reset resets every metric, keeping registrations.
func (r *Registry) Reset() {
	for _, c := range r.snapshotContexts() {
		for _, e := range c.ctx.list() {
			e.metric.Reset()
		}
	}
}

type namedContext struct {
	name string
	ctx  *metricContext
}

func (r *Registry) snapshotContexts() []namedContext {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	cs := make([]namedContext, 0, len(r.contexts))
	for name, c := range r.contexts {
		cs = append(cs, namedContext{name, c})
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].name < cs[j].name })
	return cs
}

// list returns the context's entries sorted by derived name.
func (c *metricContext) list() []*entry {
	c.mtx.RLock()
	es := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		es = append(es, e)
	}
	c.mtx.RUnlock()
	sort.Slice(es, func(i, j int) bool { return es[i].name < es[j].name })
	return es
}
