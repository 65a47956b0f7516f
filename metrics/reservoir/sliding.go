package reservoir

import "sync"

// SlidingWindow retains the last size observations.
type SlidingWindow struct {
	mtx     sync.Mutex
	count   int64
	samples []Sample
}

// NewSlidingWindow returns a reservoir over the last size observations.
func NewSlidingWindow(size int) (*SlidingWindow, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return &SlidingWindow{samples: make([]Sample, size)}, nil
}

// MustNewSlidingWindow is like NewSlidingWindow but panics on invalid size.
func MustNewSlidingWindow(size int) *SlidingWindow {
	r, err := NewSlidingWindow(size)
	if err != nil {
		panic(err)
	}
	return r
}

// Update implements Reservoir.
func (r *SlidingWindow) Update(value int64, userValue string) {
	r.mtx.Lock()
	r.samples[r.count%int64(len(r.samples))] = Sample{Value: value, UserValue: userValue}
	r.count++
	r.mtx.Unlock()
}

// Snapshot implements Reservoir.
func (r *SlidingWindow) Snapshot(reset bool) Snapshot {
	r.mtx.Lock()
	count := r.count
	samples := make([]Sample, r.retained())
	copy(samples, r.samples)
	if reset {
		r.count = 0
	}
	r.mtx.Unlock()

	return NewSnapshot(count, samples)
}

// Reset implements Reservoir.
func (r *SlidingWindow) Reset() {
	r.mtx.Lock()
	r.count = 0
	r.mtx.Unlock()
}

// Size implements Reservoir.
func (r *SlidingWindow) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.retained()
}

func (r *SlidingWindow) retained() int {
	if r.count < int64(len(r.samples)) {
		return int(r.count)
	}
	return len(r.samples)
}
