// Package meter measures the rate of events: a total count, the mean rate
// since creation and exponentially-weighted moving average rates over one,
// five and fifteen minutes, in the manner of UNIX load averages.
package meter

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/internal/items"
)

const tickInterval = 5 * time.Second

// Meter counts events and estimates their rate. Moving averages advance in
// fixed ticks of clock time, applied lazily whenever the meter is marked or
// read, so a Meter runs no goroutines.
type Meter struct {
	clock    clock.Clock
	rateUnit time.Duration
	count    atomic.Int64
	lastTick atomic.Int64 // unix nanos of the last applied tick
	items    items.Set

	mtx       sync.Mutex // guards ticking, the ewmas and startTime
	startTime time.Time
	m1        ewma
	m5        ewma
	m15       ewma
}

// New returns a Meter reading time from clk and reporting rates per
// rateUnit. A zero rateUnit means per second.
func New(clk clock.Clock, rateUnit time.Duration) *Meter {
	if clk == nil {
		clk = clock.New()
	}
	if rateUnit <= 0 {
		rateUnit = time.Second
	}
	now := clk.Now()
	m := &Meter{
		clock:     clk,
		rateUnit:  rateUnit,
		startTime: now,
	}
	m.m1.alpha = ewmaAlpha(1)
	m.m5.alpha = ewmaAlpha(5)
	m.m15.alpha = ewmaAlpha(15)
	m.lastTick.Store(now.UnixNano())
	return m
}

// Mark records n events. Negative n is rejected.
func (m *Meter) Mark(n int64) error {
	if n < 0 {
		return errors.Wrapf(metrics.ErrInvalidArgument, "meter mark must not be negative, got %d", n)
	}
	m.tickIfNecessary()
	m.count.Add(n)
	m.m1.update(n)
	m.m5.update(n)
	m.m15.update(n)
	return nil
}

// MarkItem records n events attributed to item. Items are reported with
// their share of the meter's total.
func (m *Meter) MarkItem(item string, n int64) error {
	if err := m.Mark(n); err != nil {
		return err
	}
	m.items.Add(item, n)
	return nil
}

// Count returns the total number of events marked.
func (m *Meter) Count() int64 { return m.count.Load() }

func (m *Meter) tickIfNecessary() {
	now := m.clock.Now().UnixNano()
	if now-m.lastTick.Load() < int64(tickInterval) {
		return
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()
	last := m.lastTick.Load()
	age := now - last
	if age < int64(tickInterval) {
		return
	}
	ticks := age / int64(tickInterval)
	m.lastTick.Store(last + ticks*int64(tickInterval))
	m.m1.tick(ticks)
	m.m5.tick(ticks)
	m.m15.tick(ticks)
}

// Snapshot returns the meter's current count and rates. When reset is true
// the meter starts over as if newly created.
func (m *Meter) Snapshot(reset bool) Snapshot {
	m.tickIfNecessary()
	now := m.clock.Now()

	m.mtx.Lock()
	var count int64
	if reset {
		count = m.count.Swap(0)
	} else {
		count = m.count.Load()
	}
	s := Snapshot{
		Count:             count,
		OneMinuteRate:     m.m1.rate * m.rateUnit.Seconds(),
		FiveMinuteRate:    m.m5.rate * m.rateUnit.Seconds(),
		FifteenMinuteRate: m.m15.rate * m.rateUnit.Seconds(),
		RateUnit:          m.rateUnit,
	}
	if elapsed := now.Sub(m.startTime); count > 0 && elapsed > 0 {
		s.MeanRate = float64(count) / elapsed.Seconds() * m.rateUnit.Seconds()
	}
	if reset {
		m.reset(now)
	}
	m.mtx.Unlock()

	s.Items = m.items.Snapshot(count, reset)
	return s
}

// Reset zeroes the count, rates and items.
func (m *Meter) Reset() {
	now := m.clock.Now()
	m.mtx.Lock()
	m.count.Store(0)
	m.reset(now)
	m.mtx.Unlock()
	m.items.Clear()
}

func (m *Meter) reset(now time.Time) {
	m.startTime = now
	m.lastTick.Store(now.UnixNano())
	m.m1.reset()
	m.m5.reset()
	m.m15.reset()
}

// Snapshot is an immutable view of a Meter. Rates are per RateUnit.
type Snapshot struct {
	Count             int64
	MeanRate          float64
	OneMinuteRate     float64
	FiveMinuteRate    float64
	FifteenMinuteRate float64
	RateUnit          time.Duration
	Items             []metrics.Item
}

// ewma is an exponentially-weighted moving average over a window of the
// given number of minutes, ticked every tickInterval. rate is in events per
// second and is guarded by the owning meter's mutex.
type ewma struct {
	alpha       float64
	uncounted   atomic.Int64
	rate        float64
	initialized bool
}

func ewmaAlpha(minutes float64) float64 {
	return 1 - math.Exp(-tickInterval.Seconds()/60/minutes)
}

func (e *ewma) update(n int64) { e.uncounted.Add(n) }

// tick applies n ticks. Events marked since the last tick are folded into the
// first one; the remaining ticks saw no events and decay the rate in closed
// form, so a long idle gap costs the same as a single tick.
func (e *ewma) tick(n int64) {
	instant := float64(e.uncounted.Swap(0)) / tickInterval.Seconds()
	if e.initialized {
		e.rate += e.alpha * (instant - e.rate)
	} else {
		e.rate = instant
		e.initialized = true
	}
	if n > 1 {
		e.rate *= math.Pow(1-e.alpha, float64(n-1))
	}
}

func (e *ewma) reset() {
	e.uncounted.Store(0)
	e.rate = 0
	e.initialized = false
}
