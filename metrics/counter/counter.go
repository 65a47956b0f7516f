// Package counter provides a concurrency-safe counter that can also break its
// total down by named items.
package counter

import (
	"sync/atomic"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/internal/items"
)

// Counter is an in-memory int64 counter. The zero value is ready to use.
type Counter struct {
	count atomic.Int64
	items items.Set
}

// New returns a new, usable Counter.
func New() *Counter {
	return &Counter{}
}

// Increment adds n to the counter.
func (c *Counter) Increment(n int64) { c.count.Add(n) }

// Decrement subtracts n from the counter.
func (c *Counter) Decrement(n int64) { c.count.Add(-n) }

// IncrementItem adds n to the counter and to item's share of it.
func (c *Counter) IncrementItem(item string, n int64) {
	c.count.Add(n)
	c.items.Add(item, n)
}

// DecrementItem subtracts n from the counter and from item's share of it.
func (c *Counter) DecrementItem(item string, n int64) {
	c.count.Add(-n)
	c.items.Add(item, -n)
}

// Count returns the current value of the counter.
func (c *Counter) Count() int64 { return c.count.Load() }

// Snapshot returns the counter's value and items. When reset is true the
// counter is zeroed as it is read, which suits backends that expect deltas.
func (c *Counter) Snapshot(reset bool) Snapshot {
	var n int64
	if reset {
		n = c.count.Swap(0)
	} else {
		n = c.count.Load()
	}
	return Snapshot{Count: n, Items: c.items.Snapshot(n, reset)}
}

// Reset zeroes the counter and removes its items.
func (c *Counter) Reset() {
	c.count.Store(0)
	c.items.Clear()
}

// Snapshot is an immutable view of a Counter.
type Snapshot struct {
	Count int64
	Items []metrics.Item
}
