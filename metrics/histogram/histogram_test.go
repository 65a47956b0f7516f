package histogram

import (
	"math"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-kit/appmetrics/metrics/internal/teststat"
	"github.com/go-kit/appmetrics/metrics/reservoir"
)

// fakeReservoir records what the histogram forwards to it.
type fakeReservoir struct {
	mtx     sync.Mutex
	updates []reservoir.Sample
	resets  int
}

func (r *fakeReservoir) Update(value int64, userValue string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.updates = append(r.updates, reservoir.Sample{Value: value, UserValue: userValue})
}

func (r *fakeReservoir) Snapshot(reset bool) reservoir.Snapshot {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	s := reservoir.NewSnapshot(int64(len(r.updates)), r.updates)
	if reset {
		r.updates, r.resets = nil, r.resets+1
	}
	return s
}

func (r *fakeReservoir) Reset() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.updates, r.resets = nil, r.resets+1
}

func (r *fakeReservoir) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.updates)
}

func TestUpdateForwardsToReservoir(t *testing.T) {
	r := &fakeReservoir{}
	h := New(r)
	h.Update(3, "c")
	h.Update(1, "a")
	if want, have := 2, len(r.updates); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}
	if want, have := (reservoir.Sample{Value: 1, UserValue: "a"}), r.updates[1]; want != have {
		t.Errorf("want %+v, have %+v", want, have)
	}
	if h.Reservoir() != reservoir.Reservoir(r) {
		t.Error("Reservoir does not return the backing reservoir")
	}
}

func TestAccumulatorsAreExactBeyondSample(t *testing.T) {
	h := New(reservoir.MustNewUniform(10))
	var sum int64
	for i := int64(1); i <= 1000; i++ {
		uv := ""
		switch i {
		case 1:
			uv = "smallest"
		case 1000:
			uv = "largest"
		}
		h.Update(i, uv)
		sum += i
	}
	s := h.Snapshot(false)
	if want, have := int64(1000), s.Count; want != have {
		t.Errorf("Count: want %d, have %d", want, have)
	}
	if want, have := float64(sum), s.Sum; want != have {
		t.Errorf("Sum: want %v, have %v", want, have)
	}
	if want, have := 500.5, s.Mean; want != have {
		t.Errorf("Mean: want %v, have %v", want, have)
	}
	if want, have := 1.0, s.Min; want != have {
		t.Errorf("Min: want %v, have %v", want, have)
	}
	if want, have := 1000.0, s.Max; want != have {
		t.Errorf("Max: want %v, have %v", want, have)
	}
	if want, have := "smallest", s.MinUserValue; want != have {
		t.Errorf("MinUserValue: want %q, have %q", want, have)
	}
	if want, have := "largest", s.MaxUserValue; want != have {
		t.Errorf("MaxUserValue: want %q, have %q", want, have)
	}
	if want, have := 1000.0, s.LastValue; want != have {
		t.Errorf("LastValue: want %v, have %v", want, have)
	}
	if want, have := 10, s.SampleSize; want != have {
		t.Errorf("SampleSize: want %d, have %d", want, have)
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := New(reservoir.MustNewUniform(10)).Snapshot(false)
	if s.Count != 0 || s.Sum != 0 || s.Mean != 0 || s.Min != 0 || s.Max != 0 || s.Percentile(0.5) != 0 {
		t.Errorf("empty histogram reports non-zero statistics: %+v", s)
	}
}

func TestSnapshotReset(t *testing.T) {
	r := &fakeReservoir{}
	h := New(r)
	h.Update(10, "")
	if want, have := int64(1), h.Snapshot(true).Count; want != have {
		t.Errorf("want %d, have %d", want, have)
	}
	s := h.Snapshot(false)
	if want, have := int64(0), s.Count; want != have {
		t.Errorf("Count after reset: want %d, have %d", want, have)
	}
	if want, have := 0.0, s.Max; want != have {
		t.Errorf("Max after reset: want %v, have %v", want, have)
	}
	if want, have := 1, r.resets; want != have {
		t.Errorf("reservoir resets: want %d, have %d", want, have)
	}

	h.Update(5, "")
	h.Reset()
	if want, have := int64(0), h.Snapshot(false).Count; want != have {
		t.Errorf("Count after Reset: want %d, have %d", want, have)
	}
	if want, have := 2, r.resets; want != have {
		t.Errorf("reservoir resets: want %d, have %d", want, have)
	}
}

func TestScale(t *testing.T) {
	h := New(reservoir.MustNewUniform(10))
	for _, d := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond} {
		h.Update(int64(d), "")
	}
	s := h.Snapshot(false).Scale(float64(time.Millisecond))
	for _, tc := range []struct {
		name       string
		want, have float64
	}{
		{"min", 100, s.Min},
		{"max", 300, s.Max},
		{"mean", 200, s.Mean},
		{"sum", 600, s.Sum},
		{"median", 200, s.Median},
		{"percentile", 300, s.Percentile(1)},
		{"values", 100, s.Values()[0]},
	} {
		if math.Abs(tc.want-tc.have) > 1e-9 {
			t.Errorf("%s: want %v, have %v", tc.name, tc.want, tc.have)
		}
	}
	if want, have := int64(3), s.Count; want != have {
		t.Errorf("Count: want %d, have %d", want, have)
	}
}

func TestNormalDistribution(t *testing.T) {
	const mean, stdev = 1000, 100
	h := New(reservoir.MustNewUniform(reservoir.DefaultSize))
	teststat.PopulateNormal(h, 7, teststat.Population, mean, stdev)
	s := h.Snapshot(false)
	if err := teststat.CheckNormalQuantiles(s.Percentile, mean, stdev, 0.05); err != nil {
		t.Error(err)
	}
	if err := teststat.CheckMonotonic(s.Percentile); err != nil {
		t.Error(err)
	}
	if have := s.StdDev; math.Abs(have-stdev) > 0.1*stdev {
		t.Errorf("StdDev: want about %d, have %v", stdev, have)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	const goroutines, updates = 8, 5000
	h := New(reservoir.MustNewUniform(reservoir.DefaultSize))
	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for v := int64(1); v <= updates; v++ {
				h.Update(v, "")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	s := h.Snapshot(false)
	if want, have := int64(goroutines*updates), s.Count; want != have {
		t.Errorf("Count: want %d, have %d", want, have)
	}
	if want, have := float64(goroutines*updates*(updates+1)/2), s.Sum; want != have {
		t.Errorf("Sum: want %v, have %v", want, have)
	}
	if want, have := 1.0, s.Min; want != have {
		t.Errorf("Min: want %v, have %v", want, have)
	}
	if want, have := float64(updates), s.Max; want != have {
		t.Errorf("Max: want %v, have %v", want, have)
	}
}
