package registry

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/reservoir"
	"github.com/go-kit/appmetrics/metrics/tags"
)

// Options are common to every metric kind. They are read once, when the
// metric is created; a later lookup of the same metric with different
// options gets the existing instance unchanged.
type Options struct {
	// Context groups the metric. Empty means the registry's default context.
	Context string

	// Name is required. It must not contain tags.NameSeparator.
	Name string

	MeasurementUnit metrics.Unit

	// Tags qualify the metric. Metrics with the same name and different
	// tags are independent instances.
	Tags tags.Tags

	// ResetOnReporting resets the metric each time GetData reads it.
	ResetOnReporting bool
}

// TimerOptions configure a timer.
type TimerOptions struct {
	Options

	// DurationUnit is the unit timer snapshots are expressed in. Zero means
	// milliseconds.
	DurationUnit time.Duration

	// RateUnit is the unit meter rates are expressed per. Zero means seconds.
	RateUnit time.Duration

	// Reservoir overrides the registry's default reservoir. It is invoked
	// once for every new timer.
	Reservoir reservoir.Factory
}

// HistogramOptions configure a histogram.
type HistogramOptions struct {
	Options
	Reservoir reservoir.Factory
}

// MeterOptions configure a meter.
type MeterOptions struct {
	Options
	RateUnit time.Duration
}

// CounterOptions configure a counter.
type CounterOptions struct {
	Options
}

// GaugeOptions configure a gauge.
type GaugeOptions struct {
	Options
}

func (o Options) validate() error {
	if o.Name == "" {
		return errors.Wrap(metrics.ErrInvalidOptions, "metric name is required")
	}
	if strings.Contains(o.Name, tags.NameSeparator) {
		return errors.Wrapf(metrics.ErrInvalidOptions, "metric name %q contains %q", o.Name, tags.NameSeparator)
	}
	if strings.Contains(o.Context, tags.NameSeparator) {
		return errors.Wrapf(metrics.ErrInvalidOptions, "context name %q contains %q", o.Context, tags.NameSeparator)
	}
	return o.Tags.Validate()
}

func validateUnit(name string, d time.Duration) error {
	if d < 0 {
		return errors.Wrapf(metrics.ErrInvalidOptions, "%s %v is negative", name, d)
	}
	return nil
}
