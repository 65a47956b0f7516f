// Package timer measures durations. A Timer feeds elapsed times, in
// nanoseconds, into a histogram and the rate of timed events into a meter.
package timer

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/histogram"
	"github.com/go-kit/appmetrics/metrics/meter"
)

// Histogram is the capability a Timer needs from its histogram.
// *histogram.Histogram implements it.
type Histogram interface {
	Update(value int64, userValue string)
	Snapshot(reset bool) histogram.Snapshot
	Reset()
}

// Timer records durations. It is safe for concurrent use.
type Timer struct {
	histogram    Histogram
	meter        *meter.Meter
	clock        clock.Clock
	durationUnit time.Duration
	active       atomic.Int64
}

// New returns a Timer recording into h and m, reading time from clk.
// Snapshots present durations in durationUnit; zero means milliseconds.
func New(h Histogram, m *meter.Meter, clk clock.Clock, durationUnit time.Duration) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	if m == nil {
		m = meter.New(clk, time.Second)
	}
	if durationUnit <= 0 {
		durationUnit = time.Millisecond
	}
	return &Timer{
		histogram:    h,
		meter:        m,
		clock:        clk,
		durationUnit: durationUnit,
	}
}

// Histogram returns the histogram the timer records into.
func (t *Timer) Histogram() Histogram { return t.histogram }

// Record records a duration of amount units, e.g. Record(100,
// time.Millisecond). Negative amounts are rejected.
func (t *Timer) Record(amount int64, unit time.Duration) error {
	return t.RecordWithUserValue(amount, unit, "")
}

// RecordWithUserValue is like Record, attributing the observation to
// userValue.
func (t *Timer) RecordWithUserValue(amount int64, unit time.Duration, userValue string) error {
	if unit <= 0 {
		return errors.Wrapf(metrics.ErrInvalidArgument, "timer unit must be positive, got %v", unit)
	}
	if amount < 0 {
		return errors.Wrapf(metrics.ErrInvalidArgument, "duration must not be negative, got %d%s", amount, metrics.DurationUnitName(unit))
	}
	if amount > math.MaxInt64/int64(unit) {
		return errors.Wrapf(metrics.ErrInvalidArgument, "duration %d%s overflows", amount, metrics.DurationUnitName(unit))
	}
	t.record(amount*int64(unit), userValue)
	return nil
}

// RecordDuration records d.
func (t *Timer) RecordDuration(d time.Duration) error {
	return t.Record(int64(d), time.Nanosecond)
}

func (t *Timer) record(nanos int64, userValue string) {
	t.histogram.Update(nanos, userValue)
	t.meter.Mark(1)
}

// NewContext starts a scoped measurement. Call End exactly when the scope
// exits, typically with defer:
//
//	defer t.NewContext().End()
func (t *Timer) NewContext() *Context {
	return t.NewContextWithUserValue("")
}

// NewContextWithUserValue is like NewContext, attributing the measurement to
// userValue.
func (t *Timer) NewContextWithUserValue(userValue string) *Context {
	t.active.Add(1)
	return &Context{timer: t, start: t.clock.Now(), userValue: userValue}
}

// Time calls f and records how long it took. The duration is recorded even
// if f panics; the panic is propagated.
func (t *Timer) Time(f func()) {
	defer t.NewContext().End()
	f()
}

// Snapshot returns the timer's statistics, with the histogram scaled to the
// timer's duration unit. When reset is true the timer is cleared as it is
// read.
func (t *Timer) Snapshot(reset bool) Snapshot {
	h := t.histogram.Snapshot(reset).Scale(float64(t.durationUnit))
	return Snapshot{
		Count:          h.Count,
		ActiveSessions: t.active.Load(),
		Rate:           t.meter.Snapshot(reset),
		Histogram:      h,
		DurationUnit:   t.durationUnit,
	}
}

// Reset clears the histogram and the meter.
func (t *Timer) Reset() {
	t.histogram.Reset()
	t.meter.Reset()
}

// Snapshot is an immutable view of a Timer.
type Snapshot struct {
	Count          int64
	ActiveSessions int64
	Rate           meter.Snapshot
	Histogram      histogram.Snapshot
	DurationUnit   time.Duration
}

// Context is a single in-flight measurement.
type Context struct {
	timer     *Timer
	start     time.Time
	userValue string
	once      sync.Once
	elapsed   time.Duration
}

// End records the time elapsed since the context was created and returns
// it. Only the first call records; later calls return the same elapsed time.
func (c *Context) End() time.Duration {
	c.once.Do(func() {
		c.elapsed = c.Elapsed()
		c.timer.active.Add(-1)
		c.timer.record(int64(c.elapsed), c.userValue)
	})
	return c.elapsed
}

// Elapsed returns the time since the context was created, without ending
// it.
func (c *Context) Elapsed() time.Duration {
	elapsed := clock.Since(c.timer.clock, c.start)
	if elapsed < 0 {
		// Time has gone backwards.
		elapsed = 0
	}
	return elapsed
}
