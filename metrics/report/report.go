// Package report writes registry snapshots to a go-kit logger, periodically
// or on demand, and renders them as text tables.
package report

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/registry"
)

// Source is anything that can produce registry snapshots. *registry.Registry
// implements it.
type Source interface {
	GetData(filter.Filter) registry.Snapshot
}

// LogReporter logs one record per metric.
type LogReporter struct {
	logger   log.Logger
	source   Source
	filter   filter.Filter
	interval time.Duration
	clock    clock.Clock
}

// NewLogReporter returns a reporter of the metrics in source matching f.
// Run reports every interval of clk time.
func NewLogReporter(logger log.Logger, source Source, f filter.Filter, interval time.Duration, clk clock.Clock) *LogReporter {
	if clk == nil {
		clk = clock.New()
	}
	return &LogReporter{
		logger:   logger,
		source:   source,
		filter:   f,
		interval: interval,
		clock:    clk,
	}
}

// Run reports on every tick until ctx is canceled. It returns ctx.Err().
func (r *LogReporter) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			r.Report()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Report logs the current state of every matching metric.
func (r *LogReporter) Report() {
	s := r.source.GetData(r.filter)
	logger := level.Info(r.logger)
	for _, c := range s.Contexts {
		for _, e := range c.Timers {
			h := e.Value.Histogram
			unit := metrics.DurationUnitName(e.Value.DurationUnit)
			logger.Log(
				"context", c.Context, "kind", metrics.KindTimer, "name", e.Name, "unit", unit,
				"count", h.Count, "active", e.Value.ActiveSessions,
				"rate_1m", e.Value.Rate.OneMinuteRate, "rate_mean", e.Value.Rate.MeanRate,
				"min", h.Min, "mean", h.Mean, "max", h.Max, "stddev", h.StdDev,
				"p50", h.Median, "p95", h.Percentile95, "p99", h.Percentile99,
			)
		}
		for _, e := range c.Histograms {
			h := e.Value
			logger.Log(
				"context", c.Context, "kind", metrics.KindHistogram, "name", e.Name, "unit", e.Unit,
				"count", h.Count, "min", h.Min, "mean", h.Mean, "max", h.Max, "stddev", h.StdDev,
				"p50", h.Median, "p95", h.Percentile95, "p99", h.Percentile99,
			)
		}
		for _, e := range c.Meters {
			m := e.Value
			logger.Log(
				"context", c.Context, "kind", metrics.KindMeter, "name", e.Name, "unit", e.Unit,
				"count", m.Count, "rate_mean", m.MeanRate,
				"rate_1m", m.OneMinuteRate, "rate_5m", m.FiveMinuteRate, "rate_15m", m.FifteenMinuteRate,
			)
		}
		for _, e := range c.Counters {
			logger.Log("context", c.Context, "kind", metrics.KindCounter, "name", e.Name, "unit", e.Unit, "count", e.Value.Count)
		}
		for _, e := range c.Gauges {
			logger.Log("context", c.Context, "kind", metrics.KindGauge, "name", e.Name, "unit", e.Unit, "value", e.Value.Value)
		}
	}
}
