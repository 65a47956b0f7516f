package reservoir

import (
	"math/rand/v2"
	"sync"
)

// Uniform is a reservoir of fixed capacity that samples uniformly from every
// observation ever made, using Vitter's Algorithm R. Every observation has
// probability size/count of being in the sample, regardless of arrival
// order.
type Uniform struct {
	mtx     sync.Mutex
	rng     *rand.Rand
	size    int
	count   int64
	samples []Sample
}

// NewUniform returns a Uniform reservoir retaining at most size samples.
func NewUniform(size int) (*Uniform, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return &Uniform{
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		size:    size,
		samples: make([]Sample, 0, size),
	}, nil
}

// MustNewUniform is like NewUniform but panics on invalid size.
func MustNewUniform(size int) *Uniform {
	r, err := NewUniform(size)
	if err != nil {
		panic(err)
	}
	return r
}

// Update implements Reservoir.
func (r *Uniform) Update(value int64, userValue string) {
	s := Sample{Value: value, UserValue: userValue}

	r.mtx.Lock()
	r.count++
	if len(r.samples) < r.size {
		r.samples = append(r.samples, s)
	} else if j := r.rng.Int64N(r.count); j < int64(r.size) {
		r.samples[j] = s
	}
	r.mtx.Unlock()
}

// Snapshot implements Reservoir. The live sample order is left untouched;
// statistics are computed over a sorted copy.
func (r *Uniform) Snapshot(reset bool) Snapshot {
	r.mtx.Lock()
	count := r.count
	samples := make([]Sample, len(r.samples))
	copy(samples, r.samples)
	if reset {
		r.reset()
	}
	r.mtx.Unlock()

	return NewSnapshot(count, samples)
}

// Reset implements Reservoir.
func (r *Uniform) Reset() {
	r.mtx.Lock()
	r.reset()
	r.mtx.Unlock()
}

func (r *Uniform) reset() {
	r.count = 0
	r.samples = r.samples[:0]
}

// Size implements Reservoir.
func (r *Uniform) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.samples)
}
