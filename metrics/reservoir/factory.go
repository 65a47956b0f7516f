package reservoir

import (
	"time"

	"github.com/go-kit/appmetrics/metrics/clock"
)

// UniformFactory returns a Factory of Uniform reservoirs. The size is
// validated once, here.
func UniformFactory(size int) (Factory, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return func() Reservoir { return MustNewUniform(size) }, nil
}

// ExponentiallyDecayingFactory returns a Factory of ExponentiallyDecaying
// reservoirs reading time from clk.
func ExponentiallyDecayingFactory(clk clock.Clock, size int, alpha float64, rescaleInterval time.Duration) (Factory, error) {
	if _, err := NewExponentiallyDecaying(clk, size, alpha, rescaleInterval); err != nil {
		return nil, err
	}
	return func() Reservoir { return MustNewExponentiallyDecaying(clk, size, alpha, rescaleInterval) }, nil
}

// DefaultFactory returns the Factory registries use when none is configured:
// an ExponentiallyDecaying reservoir with the default size, alpha and rescale
// interval.
func DefaultFactory(clk clock.Clock) Factory {
	return func() Reservoir {
		return MustNewExponentiallyDecaying(clk, DefaultSize, DefaultAlpha, DefaultRescaleInterval)
	}
}

// SlidingWindowFactory returns a Factory of SlidingWindow reservoirs.
func SlidingWindowFactory(size int) (Factory, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return func() Reservoir { return MustNewSlidingWindow(size) }, nil
}

// HDRFactory returns a Factory of HDR reservoirs.
func HDRFactory(lowest, highest int64, sigfigs int) (Factory, error) {
	if _, err := NewHDR(lowest, highest, sigfigs); err != nil {
		return nil, err
	}
	return func() Reservoir { return MustNewHDR(lowest, highest, sigfigs) }, nil
}

// StreamingFactory returns a Factory of Streaming reservoirs.
func StreamingFactory(bins int) (Factory, error) {
	if _, err := NewStreaming(bins); err != nil {
		return nil, err
	}
	return func() Reservoir { return MustNewStreaming(bins) }, nil
}
