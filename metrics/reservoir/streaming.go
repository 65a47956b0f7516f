package reservoir

import (
	"math"
	"sync"

	"github.com/VividCortex/gohistogram"
)

// streamingResolution is the number of evenly weighted points a Streaming
// snapshot renders its quantile sketch into.
const streamingResolution = 1000

// Streaming summarizes observations with a fixed number of adaptive bins,
// based on VividCortex/gohistogram. It never drops observations, but
// percentiles are interpolated from bin centroids.
type Streaming struct {
	mtx   sync.Mutex
	bins  int
	h     *gohistogram.NumericHistogram
	count int64
	min   *Sample
	max   *Sample
}

// NewStreaming returns a Streaming reservoir with the given number of bins. A
// good default value for bins is 50.
func NewStreaming(bins int) (*Streaming, error) {
	if bins <= 0 {
		return nil, invalid("streaming reservoir needs a positive bin count, got %d", bins)
	}
	return &Streaming{bins: bins, h: gohistogram.NewHistogram(bins)}, nil
}

// MustNewStreaming is like NewStreaming but panics on invalid configuration.
func MustNewStreaming(bins int) *Streaming {
	r, err := NewStreaming(bins)
	if err != nil {
		panic(err)
	}
	return r
}

// Update implements Reservoir.
func (r *Streaming) Update(value int64, userValue string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.h.Add(float64(value))
	r.count++
	if r.min == nil || value < r.min.Value {
		r.min = &Sample{Value: value, UserValue: userValue}
	}
	if r.max == nil || value >= r.max.Value {
		r.max = &Sample{Value: value, UserValue: userValue}
	}
}

// Snapshot implements Reservoir. The sketch is rendered as evenly weighted
// quantile points bracketed by the exact minimum and maximum.
func (r *Streaming) Snapshot(reset bool) Snapshot {
	r.mtx.Lock()
	count := r.count
	var samples []WeightedSample
	if count > 0 {
		samples = make([]WeightedSample, 0, streamingResolution+2)
		samples = append(samples, WeightedSample{Sample: *r.min})
		for i := 0; i < streamingResolution; i++ {
			q := (float64(i) + 0.5) / streamingResolution
			v := int64(math.Round(r.h.Quantile(q)))
			v = clamp(v, r.min.Value, r.max.Value)
			samples = append(samples, WeightedSample{Sample: Sample{Value: v}, Weight: 1})
		}
		samples = append(samples, WeightedSample{Sample: *r.max})
	}
	if reset {
		r.reset()
	}
	r.mtx.Unlock()

	return NewWeightedSnapshot(count, samples)
}

// Reset implements Reservoir.
func (r *Streaming) Reset() {
	r.mtx.Lock()
	r.reset()
	r.mtx.Unlock()
}

func (r *Streaming) reset() {
	r.h = gohistogram.NewHistogram(r.bins)
	r.count = 0
	r.min, r.max = nil, nil
}

// Size implements Reservoir. It reports the number of bins in use.
func (r *Streaming) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.count < int64(r.bins) {
		return int(r.count)
	}
	return r.bins
}

func clamp(v, lo, hi int64) int64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
