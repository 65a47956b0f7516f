package reservoir

import (
	"math"
	"sort"
)

// Snapshot is an immutable statistical view of a reservoir's sample. Values
// are held sorted. Weighted snapshots, produced by decaying and bucketed
// reservoirs, carry a normalized weight per value.
type Snapshot struct {
	count        int64
	values       []int64
	weights      []float64 // nil for uniformly weighted samples
	quantiles    []float64 // cumulative weights, weighted snapshots only
	minUserValue string
	maxUserValue string
}

// NewSnapshot builds a uniformly weighted snapshot over samples. count is the
// number of observations the reservoir has seen, which may exceed
// len(samples). samples is not retained.
func NewSnapshot(count int64, samples []Sample) Snapshot {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	s := Snapshot{count: count, values: make([]int64, len(sorted))}
	for i, sample := range sorted {
		s.values[i] = sample.Value
	}
	if len(sorted) > 0 {
		s.minUserValue = sorted[0].UserValue
		s.maxUserValue = sorted[len(sorted)-1].UserValue
	}
	return s
}

// NewWeightedSnapshot builds a snapshot whose values are weighted by the
// samples' weights. samples is not retained.
func NewWeightedSnapshot(count int64, samples []WeightedSample) Snapshot {
	sorted := make([]WeightedSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var total float64
	for _, sample := range sorted {
		total += sample.Weight
	}

	s := Snapshot{
		count:     count,
		values:    make([]int64, len(sorted)),
		weights:   make([]float64, len(sorted)),
		quantiles: make([]float64, len(sorted)),
	}
	var cumulative float64
	for i, sample := range sorted {
		s.values[i] = sample.Value
		switch {
		case total > 0:
			s.weights[i] = sample.Weight / total
		default:
			s.weights[i] = 1 / float64(len(sorted))
		}
		s.quantiles[i] = cumulative
		cumulative += s.weights[i]
	}
	if len(sorted) > 0 {
		s.minUserValue = sorted[0].UserValue
		s.maxUserValue = sorted[len(sorted)-1].UserValue
	}
	return s
}

// Count returns the number of observations seen by the reservoir, retained or
// not, up to the moment the snapshot was taken.
func (s Snapshot) Count() int64 { return s.count }

// Size returns the number of values in the sample.
func (s Snapshot) Size() int { return len(s.values) }

// Weighted reports whether values carry individual weights.
func (s Snapshot) Weighted() bool { return s.weights != nil }

// Values returns a sorted copy of the sampled values.
func (s Snapshot) Values() []int64 {
	values := make([]int64, len(s.values))
	copy(values, s.values)
	return values
}

// Min returns the smallest sampled value, or 0 for an empty sample.
func (s Snapshot) Min() int64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.values[0]
}

// Max returns the largest sampled value, or 0 for an empty sample.
func (s Snapshot) Max() int64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.values[len(s.values)-1]
}

// MinUserValue returns the user value recorded with the smallest sample.
func (s Snapshot) MinUserValue() string { return s.minUserValue }

// MaxUserValue returns the user value recorded with the largest sample.
func (s Snapshot) MaxUserValue() string { return s.maxUserValue }

// Sum returns the unweighted sum of the sampled values.
func (s Snapshot) Sum() float64 {
	var sum float64
	for _, v := range s.values {
		sum += float64(v)
	}
	return sum
}

// Mean returns the (weighted) arithmetic mean of the sample.
func (s Snapshot) Mean() float64 {
	if len(s.values) == 0 {
		return 0
	}
	if s.weights == nil {
		return s.Sum() / float64(len(s.values))
	}
	var mean float64
	for i, v := range s.values {
		mean += float64(v) * s.weights[i]
	}
	return mean
}

// StdDev returns the (weighted) standard deviation of the sample.
func (s Snapshot) StdDev() float64 {
	if len(s.values) <= 1 {
		return 0
	}
	mean := s.Mean()
	var variance float64
	if s.weights == nil {
		for _, v := range s.values {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(len(s.values) - 1)
	} else {
		for i, v := range s.values {
			d := float64(v) - mean
			variance += s.weights[i] * d * d
		}
	}
	return math.Sqrt(variance)
}

// Median returns the 50th percentile.
func (s Snapshot) Median() float64 { return s.Percentile(0.5) }

// Percentile returns the value at quantile q, 0 <= q <= 1. Out of range
// quantiles are clamped. Percentile is monotonic in q.
func (s Snapshot) Percentile(q float64) float64 {
	n := len(s.values)
	if n == 0 {
		return 0
	}
	switch {
	case math.IsNaN(q) || q < 0:
		q = 0
	case q > 1:
		q = 1
	}

	if s.weights != nil {
		// Largest index whose cumulative weight does not exceed q.
		i := sort.Search(n, func(i int) bool { return s.quantiles[i] > q }) - 1
		if i < 0 {
			i = 0
		}
		return float64(s.values[i])
	}

	pos := q * float64(n+1)
	idx := int(pos)
	if idx < 1 {
		return float64(s.values[0])
	}
	if idx >= n {
		return float64(s.values[n-1])
	}
	lower, upper := float64(s.values[idx-1]), float64(s.values[idx])
	return lower + (pos-math.Floor(pos))*(upper-lower)
}
