package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/histogram"
	"github.com/go-kit/appmetrics/metrics/registry"
)

const (
	bs  = "####################################################################################################"
	bsz = float64(len(bs))
)

// Print writes a human-readable table of every metric in s.
func Print(w io.Writer, s registry.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, c := range s.Contexts {
		fmt.Fprintf(tw, "context: %s\n", c.Context)
		if len(c.Timers) > 0 || len(c.Histograms) > 0 {
			fmt.Fprintf(tw, "Name\tKind\tUnit\tCount\tMin\tMean\tMax\tP50\tP95\tP99\n")
		}
		for _, e := range c.Timers {
			printHistogram(tw, e.Name, metrics.KindTimer, metrics.DurationUnitName(e.Value.DurationUnit), e.Value.Histogram)
		}
		for _, e := range c.Histograms {
			printHistogram(tw, e.Name, metrics.KindHistogram, string(e.Unit), e.Value)
		}
		for _, e := range c.Meters {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\tmean=%.3f\t1m=%.3f\t5m=%.3f\t15m=%.3f\n",
				e.Name, metrics.KindMeter, e.Unit, e.Value.Count,
				e.Value.MeanRate, e.Value.OneMinuteRate, e.Value.FiveMinuteRate, e.Value.FifteenMinuteRate)
		}
		for _, e := range c.Counters {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.Name, metrics.KindCounter, e.Unit, e.Value.Count)
		}
		for _, e := range c.Gauges {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%g\n", e.Name, metrics.KindGauge, e.Unit, e.Value.Value)
		}
	}
	return tw.Flush()
}

func printHistogram(w io.Writer, name string, kind metrics.Kind, unit string, h histogram.Snapshot) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
		name, kind, unit, h.Count, h.Min, h.Mean, h.Max, h.Median, h.Percentile95, h.Percentile99)
}

// PrintDistribution writes a graph of h's percentiles, each bar scaled to
// the maximum.
func PrintDistribution(w io.Writer, name string, h histogram.Snapshot) error {
	fmt.Fprintf(w, "name: %v\n", name)
	fmt.Fprintf(w, "count: %d\n", h.Count)

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "Quantile\tValue\tBar\n")
	for _, q := range []float64{0.5, 0.75, 0.95, 0.98, 0.99, 0.999, 1} {
		v := h.Percentile(q)
		var p float64
		if h.Max > 0 {
			p = v / h.Max
		}
		fmt.Fprintf(tw, "%g\t%.3f\t|%s\n", q, v, bs[:int(clamp(p)*bsz)])
	}
	return tw.Flush()
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
