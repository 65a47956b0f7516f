package reservoir

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HDR records every observation into an HdrHistogram instead of sampling.
// Precision is bounded by the configured significant figures, and memory by
// the value range. Values outside [lowest, highest] are clamped.
type HDR struct {
	mtx     sync.Mutex
	h       *hdrhistogram.Histogram
	lowest  int64
	highest int64
	min     *Sample
	max     *Sample
}

// NewHDR returns an HDR reservoir covering [lowest, highest] with sigfigs
// significant decimal digits of precision.
func NewHDR(lowest, highest int64, sigfigs int) (*HDR, error) {
	if lowest < 1 {
		return nil, invalid("hdr lowest trackable value must be at least 1, got %d", lowest)
	}
	if highest < 2*lowest {
		return nil, invalid("hdr highest trackable value %d must be at least twice the lowest %d", highest, lowest)
	}
	if sigfigs < 1 || sigfigs > 5 {
		return nil, invalid("hdr significant figures must be between 1 and 5, got %d", sigfigs)
	}
	return &HDR{
		h:       hdrhistogram.New(lowest, highest, sigfigs),
		lowest:  lowest,
		highest: highest,
	}, nil
}

// MustNewHDR is like NewHDR but panics on invalid configuration.
func MustNewHDR(lowest, highest int64, sigfigs int) *HDR {
	r, err := NewHDR(lowest, highest, sigfigs)
	if err != nil {
		panic(err)
	}
	return r
}

// Update implements Reservoir.
func (r *HDR) Update(value int64, userValue string) {
	switch {
	case value < r.lowest:
		value = r.lowest
	case value > r.highest:
		value = r.highest
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	_ = r.h.RecordValue(value) // in range after clamping
	if r.min == nil || value < r.min.Value {
		r.min = &Sample{Value: value, UserValue: userValue}
	}
	if r.max == nil || value >= r.max.Value {
		r.max = &Sample{Value: value, UserValue: userValue}
	}
}

// Snapshot implements Reservoir. Each populated bucket becomes one value,
// reported at the bucket's highest equivalent value and weighted by its
// count.
func (r *HDR) Snapshot(reset bool) Snapshot {
	r.mtx.Lock()
	count := r.h.TotalCount()
	var samples []WeightedSample
	for _, bar := range r.h.Distribution() {
		if bar.Count == 0 {
			continue
		}
		samples = append(samples, WeightedSample{Sample: Sample{Value: bar.To}, Weight: float64(bar.Count)})
	}
	if n := len(samples); n > 0 {
		if r.min != nil {
			samples[0].UserValue = r.min.UserValue
		}
		if r.max != nil {
			samples[n-1].UserValue = r.max.UserValue
		}
	}
	if reset {
		r.reset()
	}
	r.mtx.Unlock()

	return NewWeightedSnapshot(count, samples)
}

// Reset implements Reservoir.
func (r *HDR) Reset() {
	r.mtx.Lock()
	r.reset()
	r.mtx.Unlock()
}

func (r *HDR) reset() {
	r.h.Reset()
	r.min, r.max = nil, nil
}

// Size implements Reservoir. It reports the number of populated buckets.
func (r *HDR) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var n int
	for _, bar := range r.h.Distribution() {
		if bar.Count > 0 {
			n++
		}
	}
	return n
}
