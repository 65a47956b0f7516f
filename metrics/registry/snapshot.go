package registry

import (
	"sort"
	"time"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/counter"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/gauge"
	"github.com/go-kit/appmetrics/metrics/histogram"
	"github.com/go-kit/appmetrics/metrics/meter"
	"github.com/go-kit/appmetrics/metrics/tags"
	"github.com/go-kit/appmetrics/metrics/timer"
)

// Snapshot is the state of a registry as read by GetData. Each metric's
// value is internally consistent, but metrics are read one after another,
// not at a single instant.
type Snapshot struct {
	Timestamp time.Time
	Contexts  []ContextSnapshot // sorted by name
}

// Context returns the named context.
func (s Snapshot) Context(name string) (ContextSnapshot, bool) {
	i := sort.Search(len(s.Contexts), func(i int) bool { return s.Contexts[i].Context >= name })
	if i < len(s.Contexts) && s.Contexts[i].Context == name {
		return s.Contexts[i], true
	}
	return ContextSnapshot{}, false
}

// Entry is the value of one metric, with its identity.
type Entry[T any] struct {
	Name  string // derived from Base and Tags
	Base  string
	Tags  tags.Tags
	Unit  metrics.Unit
	Value T
}

// ContextSnapshot holds the metrics of one context, by kind, each slice
// sorted by derived name.
type ContextSnapshot struct {
	Context    string
	Timers     []Entry[timer.Snapshot]
	Histograms []Entry[histogram.Snapshot]
	Meters     []Entry[meter.Snapshot]
	Counters   []Entry[counter.Snapshot]
	Gauges     []Entry[gauge.Snapshot]
}

// Len returns the number of metrics in the context.
func (c ContextSnapshot) Len() int {
	return len(c.Timers) + len(c.Histograms) + len(c.Meters) + len(c.Counters) + len(c.Gauges)
}

// Timer returns the timer with the derived name.
func (c ContextSnapshot) Timer(name string) (timer.Snapshot, bool) { return find(c.Timers, name) }

// Histogram returns the histogram with the derived name.
func (c ContextSnapshot) Histogram(name string) (histogram.Snapshot, bool) {
	return find(c.Histograms, name)
}

// Meter returns the meter with the derived name.
func (c ContextSnapshot) Meter(name string) (meter.Snapshot, bool) { return find(c.Meters, name) }

// Counter returns the counter with the derived name.
func (c ContextSnapshot) Counter(name string) (counter.Snapshot, bool) {
	return find(c.Counters, name)
}

// Gauge returns the gauge with the derived name.
func (c ContextSnapshot) Gauge(name string) (gauge.Snapshot, bool) { return find(c.Gauges, name) }

func find[T any](entries []Entry[T], name string) (T, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Name >= name })
	if i < len(entries) && entries[i].Name == name {
		return entries[i].Value, true
	}
	var zero T
	return zero, false
}

// GetData reads every metric matching f. Metrics created with
// ResetOnReporting are reset as they are read. Contexts with no matching
// metrics are omitted.
func (r *Registry) GetData(f filter.Filter) Snapshot {
	s := Snapshot{Timestamp: r.clock.Now()}
	for _, nc := range r.snapshotContexts() {
		if !f.MatchContext(nc.name) {
			continue
		}
		cs := nc.ctx.snapshot(nc.name, f)
		if cs.Len() == 0 {
			continue
		}
		s.Contexts = append(s.Contexts, cs)
	}
	return s
}

func (c *metricContext) snapshot(name string, f filter.Filter) ContextSnapshot {
	cs := ContextSnapshot{Context: name}
	for _, e := range c.list() {
		if !f.Match(filter.Metric{Context: name, Kind: e.kind, Name: e.name, Base: e.base, Tags: e.tags}) {
			continue
		}
		reset := e.resetOnReporting
		switch m := e.metric.(type) {
		case *timer.Timer:
			cs.Timers = append(cs.Timers, entryOf(e, m.Snapshot(reset)))
		case *histogram.Histogram:
			cs.Histograms = append(cs.Histograms, entryOf(e, m.Snapshot(reset)))
		case *meter.Meter:
			cs.Meters = append(cs.Meters, entryOf(e, m.Snapshot(reset)))
		case *counter.Counter:
			cs.Counters = append(cs.Counters, entryOf(e, m.Snapshot(reset)))
		case *gauge.Gauge:
			cs.Gauges = append(cs.Gauges, entryOf(e, m.Snapshot(reset)))
		}
	}
	return cs
}

func entryOf[T any](e *entry, v T) Entry[T] {
	return Entry[T]{Name: e.name, Base: e.base, Tags: e.tags, Unit: e.unit, Value: v}
}
