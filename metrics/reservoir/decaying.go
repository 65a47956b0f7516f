package reservoir

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/go-kit/appmetrics/metrics/clock"
)

// maxExponent bounds alpha*(t-t0) between rescales. Priorities divide the
// weight by a uniform u as small as 2^-53, so weights must stay well below
// the float64 range for priorities and weight sums to remain finite.
const maxExponent = 600

// ExponentiallyDecaying is a forward-decaying priority reservoir. Each
// observation is weighted by exp(alpha*(t-t0)) and retained with priority
// weight/u for a uniform random u, so recent observations are more likely to
// survive. Landmark t0 is moved forward on a fixed interval and all stored
// priorities are rescaled, keeping exponents bounded.
//
// Observations whose priority does not beat the smallest retained priority
// are dropped from the sample but still counted.
//
// See http://dimacs.rutgers.edu/~graham/pubs/papers/fwddecay.pdf.
type ExponentiallyDecaying struct {
	mtx             sync.Mutex
	clock           clock.Clock
	rng             *rand.Rand
	size            int
	alpha           float64
	rescaleInterval time.Duration
	count           int64
	startTime       time.Time
	nextRescale     time.Time
	values          *treemap.Map // priority (float64) -> WeightedSample
}

// NewExponentiallyDecaying returns a decaying reservoir retaining at most size
// samples. A zero rescaleInterval selects DefaultRescaleInterval.
// alpha*rescaleInterval, in seconds, must stay below 600; with DefaultAlpha
// that allows intervals up to about 11 hours.
func NewExponentiallyDecaying(clk clock.Clock, size int, alpha float64, rescaleInterval time.Duration) (*ExponentiallyDecaying, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if alpha <= 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, invalid("decay alpha must be a positive number, got %v", alpha)
	}
	if rescaleInterval < 0 {
		return nil, invalid("rescale interval must not be negative, got %v", rescaleInterval)
	}
	if rescaleInterval == 0 {
		rescaleInterval = DefaultRescaleInterval
	}
	if alpha*rescaleInterval.Seconds() >= maxExponent {
		return nil, invalid("rescale interval %v is too long for decay alpha %v", rescaleInterval, alpha)
	}
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &ExponentiallyDecaying{
		clock:           clk,
		rng:             rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		size:            size,
		alpha:           alpha,
		rescaleInterval: rescaleInterval,
		startTime:       now,
		nextRescale:     now.Add(rescaleInterval),
		values:          treemap.NewWith(utils.Float64Comparator),
	}, nil
}

// MustNewExponentiallyDecaying is like NewExponentiallyDecaying but panics on
// invalid configuration.
func MustNewExponentiallyDecaying(clk clock.Clock, size int, alpha float64, rescaleInterval time.Duration) *ExponentiallyDecaying {
	r, err := NewExponentiallyDecaying(clk, size, alpha, rescaleInterval)
	if err != nil {
		panic(err)
	}
	return r
}

// Update implements Reservoir.
func (r *ExponentiallyDecaying) Update(value int64, userValue string) {
	now := r.clock.Now()

	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.rescaleIfNeeded(now)
	r.count++

	weight := math.Exp(r.alpha * now.Sub(r.startTime).Seconds())
	priority := weight / (1 - r.rng.Float64()) // u in (0, 1]
	sample := WeightedSample{Sample: Sample{Value: value, UserValue: userValue}, Weight: weight}

	if _, found := r.values.Get(priority); found {
		return
	}
	if r.values.Size() < r.size {
		r.values.Put(priority, sample)
		return
	}
	first, _ := r.values.Min()
	if first.(float64) < priority {
		r.values.Put(priority, sample)
		r.values.Remove(first)
	}
}

func (r *ExponentiallyDecaying) rescaleIfNeeded(now time.Time) {
	if now.Before(r.nextRescale) {
		return
	}
	r.nextRescale = now.Add(r.rescaleInterval)
	oldStart := r.startTime
	r.startTime = now
	scale := math.Exp(-r.alpha * now.Sub(oldStart).Seconds())

	rescaled := treemap.NewWith(utils.Float64Comparator)
	it := r.values.Iterator()
	for it.Next() {
		key := it.Key().(float64) * scale
		if key == 0 {
			// Underflowed; the sample is too old to matter.
			continue
		}
		sample := it.Value().(WeightedSample)
		sample.Weight *= scale
		rescaled.Put(key, sample)
	}
	r.values = rescaled
}

// Snapshot implements Reservoir.
func (r *ExponentiallyDecaying) Snapshot(reset bool) Snapshot {
	now := r.clock.Now()

	r.mtx.Lock()
	r.rescaleIfNeeded(now)
	count := r.count
	samples := make([]WeightedSample, 0, r.values.Size())
	for _, v := range r.values.Values() {
		samples = append(samples, v.(WeightedSample))
	}
	if reset {
		r.reset(now)
	}
	r.mtx.Unlock()

	return NewWeightedSnapshot(count, samples)
}

// Reset implements Reservoir.
func (r *ExponentiallyDecaying) Reset() {
	now := r.clock.Now()
	r.mtx.Lock()
	r.reset(now)
	r.mtx.Unlock()
}

func (r *ExponentiallyDecaying) reset(now time.Time) {
	r.values.Clear()
	r.count = 0
	r.startTime = now
	r.nextRescale = now.Add(r.rescaleInterval)
}

// Size implements Reservoir.
func (r *ExponentiallyDecaying) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.values.Size()
}
