// Package items tracks per-item counts for counters and meters.
package items

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-kit/appmetrics/metrics"
)

// Set is a concurrency-safe set of named counts. The zero value is ready to
// use.
type Set struct {
	m sync.Map // item -> *atomic.Int64
}

// Add adds n to item's count.
func (s *Set) Add(item string, n int64) {
	v, ok := s.m.Load(item)
	if !ok {
		v, _ = s.m.LoadOrStore(item, new(atomic.Int64))
	}
	v.(*atomic.Int64).Add(n)
}

// Snapshot returns the items sorted by name, with each item's percentage of
// total. When reset is true the items are removed as they are read.
func (s *Set) Snapshot(total int64, reset bool) []metrics.Item {
	var result []metrics.Item
	s.m.Range(func(k, v interface{}) bool {
		var n int64
		if reset {
			n = v.(*atomic.Int64).Swap(0)
			s.m.Delete(k)
		} else {
			n = v.(*atomic.Int64).Load()
		}
		item := metrics.Item{Item: k.(string), Count: n}
		if total != 0 {
			item.Percent = math.Round(float64(n)/float64(total)*10000) / 100
		}
		result = append(result, item)
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Item < result[j].Item })
	return result
}

// Clear removes every item.
func (s *Set) Clear() {
	s.m.Range(func(k, _ interface{}) bool {
		s.m.Delete(k)
		return true
	})
}
