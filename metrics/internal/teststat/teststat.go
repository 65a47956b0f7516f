// Package teststat contains helper functions for statistical testing of
// reservoirs and histograms.
package teststat

import (
	"fmt"
	"math"
	"math/rand"
)

// Population is the default number of observations PopulateNormal makes.
const Population = 4321

// Observer is anything that accepts int64 observations with a user value.
type Observer interface {
	Update(value int64, userValue string)
}

// PopulateNormal feeds n observations drawn from a normal distribution with
// the given mean and standard deviation into o. The same seed always yields
// the same observations.
func PopulateNormal(o Observer, seed int64, n int, mean, stdev int64) {
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		sample := int64(r.NormFloat64()*float64(stdev) + float64(mean))
		o.Update(sample, "")
	}
}

// CheckNormalQuantiles verifies that percentile reports the 50th, 90th, 95th
// and 99th percentiles of a normal distribution within tolerance, expressed
// as a fraction of the expected value.
func CheckNormalQuantiles(percentile func(q float64) float64, mean, stdev int64, tolerance float64) error {
	for _, quantile := range []int{50, 90, 95, 99} {
		want := NormalValueAtQuantile(mean, stdev, quantile)
		have := percentile(float64(quantile) / 100)
		if math.Abs(float64(want)-have) > tolerance*float64(want) {
			return fmt.Errorf("p%d: want %d, have %.2f (tolerance %.0f%%)", quantile, want, have, tolerance*100)
		}
	}
	return nil
}

// CheckMonotonic verifies percentile(p1) <= percentile(p2) for p1 <= p2 over
// a fine grid of quantiles.
func CheckMonotonic(percentile func(q float64) float64) error {
	prev := math.Inf(-1)
	for i := 0; i <= 1000; i++ {
		q := float64(i) / 1000
		v := percentile(q)
		if v < prev {
			return fmt.Errorf("percentile(%.3f) = %v is below percentile(%.3f) = %v", q, v, float64(i-1)/1000, prev)
		}
		prev = v
	}
	return nil
}

// NormalValueAtQuantile returns the value at quantile (1..99) of a normal
// distribution.
//
// https://en.wikipedia.org/wiki/Normal_distribution#Quantile_function
func NormalValueAtQuantile(mean, stdev int64, quantile int) int64 {
	return int64(float64(mean) + float64(stdev)*math.Sqrt2*erfinv(2*(float64(quantile)/100)-1))
}

// https://stackoverflow.com/questions/5971830/need-code-for-inverse-error-function
func erfinv(y float64) float64 {
	if y < -1.0 || y > 1.0 {
		panic("invalid input")
	}

	var (
		a = [4]float64{0.886226899, -1.645349621, 0.914624893, -0.140543331}
		b = [4]float64{-2.118377725, 1.442710462, -0.329097515, 0.012229801}
		c = [4]float64{-1.970840454, -1.624906493, 3.429567803, 1.641345311}
		d = [2]float64{3.543889200, 1.637067800}
	)

	const y0 = 0.7
	var x, z float64

	if math.Abs(y) == 1.0 {
		x = -y * math.Log(0.0)
	} else if y < -y0 {
		z = math.Sqrt(-math.Log((1.0 + y) / 2.0))
		x = -(((c[3]*z+c[2])*z+c[1])*z + c[0]) / ((d[1]*z+d[0])*z + 1.0)
	} else {
		if y < y0 {
			z = y * y
			x = y * (((a[3]*z+a[2])*z+a[1])*z + a[0]) / ((((b[3]*z+b[2])*z+b[1])*z+b[0])*z + 1.0)
		} else {
			z = math.Sqrt(-math.Log((1.0 - y) / 2.0))
			x = (((c[3]*z+c[2])*z+c[1])*z + c[0]) / ((d[1]*z+d[0])*z + 1.0)
		}
		x = x - (math.Erf(x)-y)/(2.0/math.SqrtPi*math.Exp(-x*x))
		x = x - (math.Erf(x)-y)/(2.0/math.SqrtPi*math.Exp(-x*x))
	}

	return x
}
