// Package gauge provides gauges: metrics that take a specific value at any
// moment, either set by the application or computed when read.
package gauge

import (
	"math"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
)

// Gauge is an in-memory float64 gauge.
type Gauge struct {
	bits uint64
	fn   func() float64 // immutable; nil for settable gauges
}

// New returns a settable Gauge with value 0.
func New() *Gauge {
	return &Gauge{}
}

// NewFunc returns a Gauge whose value is computed by fn each time it is read.
func NewFunc(fn func() float64) *Gauge {
	return &Gauge{fn: fn}
}

// NewRatio returns a Gauge reporting numerator()/denominator(), or 0 when the
// denominator is 0.
func NewRatio(numerator, denominator func() float64) *Gauge {
	return NewFunc(func() float64 {
		d := denominator()
		if d == 0 {
			return 0
		}
		return numerator() / d
	})
}

// Set sets the gauge to value. NaN and infinite values are rejected, as is
// setting a computed gauge.
func (g *Gauge) Set(value float64) error {
	if err := g.check(value); err != nil {
		return err
	}
	atomic.StoreUint64(&g.bits, math.Float64bits(value))
	return nil
}

// Add adds delta to the gauge.
func (g *Gauge) Add(delta float64) error {
	if err := g.check(delta); err != nil {
		return err
	}
	for {
		var (
			old  = atomic.LoadUint64(&g.bits)
			newf = math.Float64frombits(old) + delta
			new  = math.Float64bits(newf)
		)
		if atomic.CompareAndSwapUint64(&g.bits, old, new) {
			return nil
		}
	}
}

func (g *Gauge) check(v float64) error {
	if g.fn != nil {
		return errors.Wrap(metrics.ErrInvalidArgument, "cannot set a computed gauge")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(metrics.ErrInvalidArgument, "gauge value must be finite, got %v", v)
	}
	return nil
}

// Value returns the current value of the gauge.
func (g *Gauge) Value() float64 {
	if g.fn != nil {
		return g.fn()
	}
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

// Snapshot returns the gauge's value. When reset is true a settable gauge is
// returned to 0 as it is read.
func (g *Gauge) Snapshot(reset bool) Snapshot {
	if g.fn != nil || !reset {
		return Snapshot{Value: g.Value()}
	}
	return Snapshot{Value: math.Float64frombits(atomic.SwapUint64(&g.bits, 0))}
}

// Reset returns a settable gauge to 0. It has no effect on computed gauges.
func (g *Gauge) Reset() {
	atomic.StoreUint64(&g.bits, 0)
}

// Snapshot is an immutable view of a Gauge.
type Snapshot struct {
	Value float64
}
