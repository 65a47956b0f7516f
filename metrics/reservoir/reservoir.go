// Package reservoir implements statistical sampling strategies for streams of
// int64 observations. A Reservoir keeps a bounded, representative sample and
// produces immutable Snapshots with percentile estimates.
//
// Two classical strategies are provided: Uniform, which implements Vitter's
// Algorithm R, and ExponentiallyDecaying, which implements forward-decaying
// priority sampling and so favours recent observations. SlidingWindow, HDR and
// Streaming are alternatives behind the same interface; custom strategies
// only need to implement Reservoir.
package reservoir

import (
	"time"

	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
)

// Defaults shared by the sampling reservoirs. A sample size of 1028 gives a
// 99.9% confidence level with a 5% margin of error assuming a normal
// distribution; the alpha heavily biases the decaying reservoir towards the
// last five minutes of observations.
const (
	DefaultSize            = 1028
	DefaultAlpha           = 0.015
	DefaultRescaleInterval = time.Hour
)

// Reservoir holds a sample of observed values. Implementations must be safe
// for concurrent use and must never block Update for longer than it takes to
// copy the sample for a snapshot.
type Reservoir interface {
	// Update records one observation. An empty userValue means the
	// observation carries none.
	Update(value int64, userValue string)

	// Snapshot returns the current statistics. When reset is true the
	// reservoir is cleared in the same critical section.
	Snapshot(reset bool) Snapshot

	// Reset discards all retained samples and counters.
	Reset()

	// Size returns the number of samples currently retained.
	Size() int
}

// Factory builds a fresh Reservoir. Registries invoke it once for every
// metric instance they create, so two instances never share a sample.
type Factory func() Reservoir

// Sample is a single retained observation.
type Sample struct {
	Value     int64
	UserValue string
}

// WeightedSample is a retained observation with its decay weight.
type WeightedSample struct {
	Sample
	Weight float64
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(metrics.ErrInvalidOptions, format, args...)
}

func checkSize(size int) error {
	if size <= 0 {
		return invalid("reservoir size must be positive, got %d", size)
	}
	return nil
}
