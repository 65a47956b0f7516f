package registry

import (
	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/counter"
	"github.com/go-kit/appmetrics/metrics/gauge"
	"github.com/go-kit/appmetrics/metrics/histogram"
	"github.com/go-kit/appmetrics/metrics/meter"
	"github.com/go-kit/appmetrics/metrics/reservoir"
	"github.com/go-kit/appmetrics/metrics/tags"
	"github.com/go-kit/appmetrics/metrics/timer"
)

// get adapts getOrCreate to a concrete metric type. Within a context a kind
// always maps to one type, so the assertion holds for any entry that passed
// the kind check.
func get[M interface{ Reset() }](r *Registry, kind metrics.Kind, o Options, t tags.Tags, build func() (M, error)) (M, error) {
	m, err := r.getOrCreate(kind, o, t, func() (interface{ Reset() }, error) {
		m, err := build()
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		var zero M
		return zero, err
	}
	return m.(M), nil
}

func (r *Registry) newReservoir(f reservoir.Factory) (reservoir.Reservoir, error) {
	if f == nil {
		f = r.defaultReservoir
	}
	res := f()
	if res == nil {
		return nil, errors.Wrap(metrics.ErrInvalidOptions, "reservoir factory returned nil")
	}
	return res, nil
}

// TimerProvider gets or creates timers.
type TimerProvider struct{ r *Registry }

// Timer returns the registry's timer provider.
func (r *Registry) Timer() TimerProvider { return TimerProvider{r} }

// Instance returns the timer keyed by opts.Name and opts.Tags.
func (p TimerProvider) Instance(opts TimerOptions) (*timer.Timer, error) {
	return p.WithReservoir(opts, tags.Empty, opts.Reservoir)
}

// Tagged returns the timer keyed by opts.Name and opts.Tags merged with t.
func (p TimerProvider) Tagged(opts TimerOptions, t tags.Tags) (*timer.Timer, error) {
	return p.WithReservoir(opts, t, opts.Reservoir)
}

// WithReservoir is like Tagged, but a newly created timer samples into a
// reservoir from f. f is ignored if the timer already exists.
func (p TimerProvider) WithReservoir(opts TimerOptions, t tags.Tags, f reservoir.Factory) (*timer.Timer, error) {
	return p.WithHistogram(opts, t, func() (timer.Histogram, error) {
		res, err := p.r.newReservoir(f)
		if err != nil {
			return nil, err
		}
		return histogram.New(res), nil
	})
}

// WithHistogram is like Tagged, but a newly created timer records into the
// histogram returned by f. f is ignored if the timer already exists.
func (p TimerProvider) WithHistogram(opts TimerOptions, t tags.Tags, f func() (timer.Histogram, error)) (*timer.Timer, error) {
	if err := validateUnit("duration unit", opts.DurationUnit); err != nil {
		return nil, err
	}
	if err := validateUnit("rate unit", opts.RateUnit); err != nil {
		return nil, err
	}
	return get(p.r, metrics.KindTimer, opts.Options, t, func() (*timer.Timer, error) {
		h, err := f()
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, errors.Wrap(metrics.ErrInvalidOptions, "histogram factory returned nil")
		}
		return timer.New(h, meter.New(p.r.clock, opts.RateUnit), p.r.clock, opts.DurationUnit), nil
	})
}

// HistogramProvider gets or creates histograms.
type HistogramProvider struct{ r *Registry }

// Histogram returns the registry's histogram provider.
func (r *Registry) Histogram() HistogramProvider { return HistogramProvider{r} }

// Instance returns the histogram keyed by opts.Name and opts.Tags.
func (p HistogramProvider) Instance(opts HistogramOptions) (*histogram.Histogram, error) {
	return p.WithReservoir(opts, tags.Empty, opts.Reservoir)
}

// Tagged returns the histogram keyed by opts.Name and opts.Tags merged with t.
func (p HistogramProvider) Tagged(opts HistogramOptions, t tags.Tags) (*histogram.Histogram, error) {
	return p.WithReservoir(opts, t, opts.Reservoir)
}

// WithReservoir is like Tagged, but a newly created histogram samples into a
// reservoir from f.
func (p HistogramProvider) WithReservoir(opts HistogramOptions, t tags.Tags, f reservoir.Factory) (*histogram.Histogram, error) {
	return p.WithHistogram(opts, t, func() (*histogram.Histogram, error) {
		res, err := p.r.newReservoir(f)
		if err != nil {
			return nil, err
		}
		return histogram.New(res), nil
	})
}

// WithHistogram is like Tagged, but a newly created entry is the histogram
// returned by f.
func (p HistogramProvider) WithHistogram(opts HistogramOptions, t tags.Tags, f func() (*histogram.Histogram, error)) (*histogram.Histogram, error) {
	return get(p.r, metrics.KindHistogram, opts.Options, t, func() (*histogram.Histogram, error) {
		h, err := f()
		if err == nil && h == nil {
			err = errors.Wrap(metrics.ErrInvalidOptions, "histogram factory returned nil")
		}
		return h, err
	})
}

// MeterProvider gets or creates meters.
type MeterProvider struct{ r *Registry }

// Meter returns the registry's meter provider.
func (r *Registry) Meter() MeterProvider { return MeterProvider{r} }

// Instance returns the meter keyed by opts.Name and opts.Tags.
func (p MeterProvider) Instance(opts MeterOptions) (*meter.Meter, error) {
	return p.Tagged(opts, tags.Empty)
}

// Tagged returns the meter keyed by opts.Name and opts.Tags merged with t.
func (p MeterProvider) Tagged(opts MeterOptions, t tags.Tags) (*meter.Meter, error) {
	if err := validateUnit("rate unit", opts.RateUnit); err != nil {
		return nil, err
	}
	return get(p.r, metrics.KindMeter, opts.Options, t, func() (*meter.Meter, error) {
		return meter.New(p.r.clock, opts.RateUnit), nil
	})
}

// CounterProvider gets or creates counters.
type CounterProvider struct{ r *Registry }

// Counter returns the registry's counter provider.
func (r *Registry) Counter() CounterProvider { return CounterProvider{r} }

// Instance returns the counter keyed by opts.Name and opts.Tags.
func (p CounterProvider) Instance(opts CounterOptions) (*counter.Counter, error) {
	return p.Tagged(opts, tags.Empty)
}

// Tagged returns the counter keyed by opts.Name and opts.Tags merged with t.
func (p CounterProvider) Tagged(opts CounterOptions, t tags.Tags) (*counter.Counter, error) {
	return get(p.r, metrics.KindCounter, opts.Options, t, func() (*counter.Counter, error) {
		return counter.New(), nil
	})
}

// GaugeProvider gets or creates gauges.
type GaugeProvider struct{ r *Registry }

// Gauge returns the registry's gauge provider.
func (r *Registry) Gauge() GaugeProvider { return GaugeProvider{r} }

// Instance returns the settable gauge keyed by opts.Name and opts.Tags.
func (p GaugeProvider) Instance(opts GaugeOptions) (*gauge.Gauge, error) {
	return p.Tagged(opts, tags.Empty)
}

// Tagged returns the settable gauge keyed by opts.Name and opts.Tags merged
// with t.
func (p GaugeProvider) Tagged(opts GaugeOptions, t tags.Tags) (*gauge.Gauge, error) {
	return get(p.r, metrics.KindGauge, opts.Options, t, func() (*gauge.Gauge, error) {
		return gauge.New(), nil
	})
}

// WithValue returns the gauge keyed by opts.Name and opts.Tags merged with
// t, creating it as a gauge computed by fn.
func (p GaugeProvider) WithValue(opts GaugeOptions, t tags.Tags, fn func() float64) (*gauge.Gauge, error) {
	if fn == nil {
		return nil, errors.Wrap(metrics.ErrInvalidOptions, "gauge function is nil")
	}
	return get(p.r, metrics.KindGauge, opts.Options, t, func() (*gauge.Gauge, error) {
		return gauge.NewFunc(fn), nil
	})
}

// WithRatio returns the gauge keyed by opts.Name and opts.Tags merged with
// t, creating it as numerator()/denominator().
func (p GaugeProvider) WithRatio(opts GaugeOptions, t tags.Tags, numerator, denominator func() float64) (*gauge.Gauge, error) {
	if numerator == nil || denominator == nil {
		return nil, errors.Wrap(metrics.ErrInvalidOptions, "ratio gauge function is nil")
	}
	return get(p.r, metrics.KindGauge, opts.Options, t, func() (*gauge.Gauge, error) {
		return gauge.NewRatio(numerator, denominator), nil
	})
}
