package histogram

import "github.com/go-kit/appmetrics/metrics/reservoir"

// Snapshot is an immutable view of a Histogram. Count, Sum, Mean, Min, Max
// and LastValue are exact; StdDev and the percentiles come from the sample.
type Snapshot struct {
	Count         int64
	Sum           float64
	Mean          float64
	Min           float64
	MinUserValue  string
	Max           float64
	MaxUserValue  string
	LastValue     float64
	LastUserValue string
	StdDev        float64
	Median        float64
	Percentile75  float64
	Percentile95  float64
	Percentile98  float64
	Percentile99  float64
	Percentile999 float64
	SampleSize    int

	sample reservoir.Snapshot
	scale  float64
}

func newSnapshot(count, sum int64, minO, maxO, last *observation, sample reservoir.Snapshot) Snapshot {
	s := Snapshot{
		Count:         count,
		Sum:           float64(sum),
		StdDev:        sample.StdDev(),
		Median:        sample.Median(),
		Percentile75:  sample.Percentile(0.75),
		Percentile95:  sample.Percentile(0.95),
		Percentile98:  sample.Percentile(0.98),
		Percentile99:  sample.Percentile(0.99),
		Percentile999: sample.Percentile(0.999),
		SampleSize:    sample.Size(),
		sample:        sample,
		scale:         1,
	}
	if count > 0 {
		s.Mean = float64(sum) / float64(count)
	}
	if minO != nil {
		s.Min, s.MinUserValue = float64(minO.value), minO.userValue
	}
	if maxO != nil {
		s.Max, s.MaxUserValue = float64(maxO.value), maxO.userValue
	}
	if last != nil {
		s.LastValue, s.LastUserValue = float64(last.value), last.userValue
	}
	return s
}

// Percentile returns the estimated value at quantile q, 0 <= q <= 1.
func (s Snapshot) Percentile(q float64) float64 {
	return s.sample.Percentile(q) / s.divisor()
}

// Values returns a sorted copy of the sampled values, in the snapshot's
// scale.
func (s Snapshot) Values() []float64 {
	raw := s.sample.Values()
	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = float64(v) / s.divisor()
	}
	return values
}

// Scale returns a copy of s with every value quantity divided by factor, e.g.
// float64(time.Millisecond) to present nanosecond observations in
// milliseconds. Count and SampleSize are unchanged. A non-positive factor
// returns s unchanged.
func (s Snapshot) Scale(factor float64) Snapshot {
	if factor <= 0 || factor == 1 {
		return s
	}
	s.Sum /= factor
	s.Mean /= factor
	s.Min /= factor
	s.Max /= factor
	s.LastValue /= factor
	s.StdDev /= factor
	s.Median /= factor
	s.Percentile75 /= factor
	s.Percentile95 /= factor
	s.Percentile98 /= factor
	s.Percentile99 /= factor
	s.Percentile999 /= factor
	s.scale = s.divisor() * factor
	return s
}

func (s Snapshot) divisor() float64 {
	if s.scale == 0 {
		return 1
	}
	return s.scale
}
