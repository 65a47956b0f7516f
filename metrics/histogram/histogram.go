// Package histogram aggregates a stream of int64 observations. Counts, sums
// and extremes are exact over every observation; dispersion and percentiles
// are estimated from a reservoir sample.
package histogram

import (
	"sync/atomic"

	"github.com/go-kit/appmetrics/metrics/reservoir"
)

// Histogram wraps a Reservoir with exact running accumulators. It is safe for
// concurrent use; accumulators are lock-free and the reservoir serializes its
// own sample.
type Histogram struct {
	reservoir reservoir.Reservoir
	count     atomic.Int64
	sum       atomic.Int64
	min       atomic.Pointer[observation]
	max       atomic.Pointer[observation]
	last      atomic.Pointer[observation]
}

type observation struct {
	value     int64
	userValue string
}

// New returns a Histogram sampling through r. r must not be shared with any
// other metric.
func New(r reservoir.Reservoir) *Histogram {
	if r == nil {
		panic("histogram: nil reservoir")
	}
	return &Histogram{reservoir: r}
}

// Reservoir returns the reservoir backing the histogram.
func (h *Histogram) Reservoir() reservoir.Reservoir { return h.reservoir }

// Update records an observation. An empty userValue means none.
func (h *Histogram) Update(value int64, userValue string) {
	o := &observation{value: value, userValue: userValue}
	h.count.Add(1)
	h.sum.Add(value)
	h.last.Store(o)
	for {
		cur := h.min.Load()
		if cur != nil && cur.value <= value {
			break
		}
		if h.min.CompareAndSwap(cur, o) {
			break
		}
	}
	for {
		cur := h.max.Load()
		if cur != nil && cur.value > value {
			break
		}
		if h.max.CompareAndSwap(cur, o) {
			break
		}
	}
	h.reservoir.Update(value, userValue)
}

// Snapshot returns the histogram's current statistics. When reset is true,
// the accumulators and the reservoir are cleared as they are read.
func (h *Histogram) Snapshot(reset bool) Snapshot {
	var (
		count          int64
		sum            int64
		minO, maxO, lo *observation
	)
	if reset {
		count = h.count.Swap(0)
		sum = h.sum.Swap(0)
		minO = h.min.Swap(nil)
		maxO = h.max.Swap(nil)
		lo = h.last.Swap(nil)
	} else {
		count = h.count.Load()
		sum = h.sum.Load()
		minO = h.min.Load()
		maxO = h.max.Load()
		lo = h.last.Load()
	}
	sample := h.reservoir.Snapshot(reset)
	return newSnapshot(count, sum, minO, maxO, lo, sample)
}

// Reset clears the accumulators and the reservoir.
func (h *Histogram) Reset() {
	h.count.Store(0)
	h.sum.Store(0)
	h.min.Store(nil)
	h.max.Store(nil)
	h.last.Store(nil)
	h.reservoir.Reset()
}
