// Package clock provides the time source used by reservoirs, meters and
// timers. The engine never reads the wall clock directly; tests substitute a
// Manual clock to make decay and elapsed-time computations deterministic.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks from a Clock.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// New returns a Clock backed by the system's monotonic clock.
func New() Clock {
	return realClock{clockwork.NewRealClock()}
}

type realClock struct {
	c clockwork.Clock
}

func (c realClock) Now() time.Time                   { return c.c.Now() }
func (c realClock) NewTicker(d time.Duration) Ticker { return c.c.NewTicker(d) }

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Manual is a Clock that only moves when told to. It is safe for concurrent
// use.
type Manual struct {
	fake clockwork.FakeClock
}

// NewManual returns a Manual clock set to an arbitrary fixed instant.
func NewManual() *Manual {
	return &Manual{fake: clockwork.NewFakeClock()}
}

// NewManualAt returns a Manual clock set to t.
func NewManualAt(t time.Time) *Manual {
	return &Manual{fake: clockwork.NewFakeClockAt(t)}
}

// Now implements Clock.
func (m *Manual) Now() time.Time { return m.fake.Now() }

// NewTicker implements Clock. The ticker fires as Advance moves time past
// each period.
func (m *Manual) NewTicker(d time.Duration) Ticker { return m.fake.NewTicker(d) }

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) { m.fake.Advance(d) }

// AdvanceBy moves the clock forward by amount units, e.g.
// AdvanceBy(time.Millisecond, 100).
func (m *Manual) AdvanceBy(unit time.Duration, amount int64) {
	m.fake.Advance(unit * time.Duration(amount))
}

// BlockUntil blocks until n goroutines are waiting on the clock, e.g. on one
// of its tickers.
func (m *Manual) BlockUntil(n int) { m.fake.BlockUntil(n) }
