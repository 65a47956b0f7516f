// Package prometheus exports registry snapshots as Prometheus metrics. The
// Collector reads the registry on every scrape; nothing is copied in
// between.
//
// Base names become metric names and contexts and tags become labels.
// Prometheus requires every metric in a family to have the same label keys,
// so all tagged instances of a name should use the same tag keys. Help text
// is the base name.
package prometheus

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/histogram"
	"github.com/go-kit/appmetrics/metrics/registry"
	"github.com/go-kit/appmetrics/metrics/tags"
)

// ContextLabel is the label carrying the metric's context.
const ContextLabel = "context"

// Source is anything that can produce registry snapshots.
type Source interface {
	GetData(filter.Filter) registry.Snapshot
}

// Collector is a prometheus.Collector over a Source.
type Collector struct {
	source    Source
	filter    filter.Filter
	namespace string
}

// NewCollector returns a collector of the metrics in source matching f,
// named under namespace.
func NewCollector(source Source, f filter.Filter, namespace string) *Collector {
	return &Collector{source: source, filter: f, namespace: namespace}
}

// Describe implements prometheus.Collector. It sends nothing: the set of
// metrics changes as the registry grows, so the collector is unchecked.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	sc := &scrape{Collector: c, ch: ch, families: map[string]string{}}
	s := c.source.GetData(c.filter)
	for _, ctx := range s.Contexts {
		for _, e := range ctx.Timers {
			// Prometheus durations are in seconds.
			sc.summary(ctx.Context, metrics.KindTimer, e.Base, "_seconds", e.Tags, e.Value.Histogram, e.Value.DurationUnit.Seconds())
			sc.meter(ctx.Context, metrics.KindTimer, e.Base, e.Tags, e.Value.Rate.Count,
				e.Value.Rate.MeanRate, e.Value.Rate.OneMinuteRate, e.Value.Rate.FiveMinuteRate, e.Value.Rate.FifteenMinuteRate)
		}
		for _, e := range ctx.Histograms {
			sc.summary(ctx.Context, metrics.KindHistogram, e.Base, "", e.Tags, e.Value, 1)
		}
		for _, e := range ctx.Meters {
			m := e.Value
			sc.meter(ctx.Context, metrics.KindMeter, e.Base, e.Tags, m.Count, m.MeanRate, m.OneMinuteRate, m.FiveMinuteRate, m.FifteenMinuteRate)
		}
		for _, e := range ctx.Counters {
			// Counters can decrement, so they are gauges to Prometheus.
			sc.constant(ctx.Context, metrics.KindCounter, e.Base, "", e.Tags, prometheus.GaugeValue, float64(e.Value.Count))
		}
		for _, e := range ctx.Gauges {
			sc.constant(ctx.Context, metrics.KindGauge, e.Base, "", e.Tags, prometheus.GaugeValue, e.Value.Value)
		}
	}
}

// Metric types, as far as family naming is concerned.
const (
	typeGauge   = "gauge"
	typeCounter = "counter"
	typeSummary = "summary"
)

// scrape is a single Collect call. Contexts are independent namespaces in
// the registry, so the same base name may belong to different kinds in
// different contexts. Families must agree on type and help, so help is the
// base name alone and a family already claimed by another type is renamed
// with the kind appended, e.g. jobs_histogram.
type scrape struct {
	*Collector
	ch       chan<- prometheus.Metric
	families map[string]string // fully-qualified name -> type
}

func (sc *scrape) desc(kind metrics.Kind, base, suffix, typ string, t tags.Tags, extra ...string) (*prometheus.Desc, []string) {
	name := prometheus.BuildFQName(sc.namespace, "", Sanitize(base+suffix))
	for {
		have, ok := sc.families[name]
		if !ok || have == typ {
			break
		}
		name += "_" + kind.String()
	}
	sc.families[name] = typ

	keys, values := labels(t)
	return prometheus.NewDesc(name, base, append(keys, extra...), nil), values
}

func (sc *scrape) constant(ctx string, kind metrics.Kind, base, suffix string, t tags.Tags, vt prometheus.ValueType, v float64) {
	typ := typeGauge
	if vt == prometheus.CounterValue {
		typ = typeCounter
	}
	desc, values := sc.desc(kind, base, suffix, typ, t)
	send(sc.ch, desc)(prometheus.NewConstMetric(desc, vt, v, append([]string{ctx}, values...)...))
}

func (sc *scrape) meter(ctx string, kind metrics.Kind, base string, t tags.Tags, count int64, mean, m1, m5, m15 float64) {
	sc.constant(ctx, kind, base, "_total", t, prometheus.CounterValue, float64(count))

	desc, values := sc.desc(kind, base, "_rate", typeGauge, t, "window")
	lv := append([]string{ctx}, values...)
	for _, w := range []struct {
		window string
		rate   float64
	}{{"mean", mean}, {"1m", m1}, {"5m", m5}, {"15m", m15}} {
		send(sc.ch, desc)(prometheus.NewConstMetric(desc, prometheus.GaugeValue, w.rate, append(lv, w.window)...))
	}
}

func (sc *scrape) summary(ctx string, kind metrics.Kind, base, suffix string, t tags.Tags, h histogram.Snapshot, factor float64) {
	desc, values := sc.desc(kind, base, suffix, typeSummary, t)
	quantiles := map[float64]float64{
		0.5:   h.Median * factor,
		0.75:  h.Percentile75 * factor,
		0.95:  h.Percentile95 * factor,
		0.99:  h.Percentile99 * factor,
		0.999: h.Percentile999 * factor,
	}
	send(sc.ch, desc)(prometheus.NewConstSummary(desc, uint64(h.Count), h.Sum*factor, quantiles, append([]string{ctx}, values...)...))
}

func send(ch chan<- prometheus.Metric, desc *prometheus.Desc) func(prometheus.Metric, error) {
	return func(m prometheus.Metric, err error) {
		if err != nil {
			m = prometheus.NewInvalidMetric(desc, err)
		}
		ch <- m
	}
}

// labels returns the label keys, context first and then the sanitized tag
// keys in tag order, and the tag values.
func labels(t tags.Tags) ([]string, []string) {
	keys := []string{ContextLabel}
	for _, k := range t.Keys() {
		keys = append(keys, Sanitize(k))
	}
	return keys, t.Values()
}

// Sanitize maps name to a valid Prometheus metric or label name by
// replacing invalid characters with underscores.
func Sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
