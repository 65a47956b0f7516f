package registry_test

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/histogram"
	"github.com/go-kit/appmetrics/metrics/registry"
	"github.com/go-kit/appmetrics/metrics/reservoir"
	"github.com/go-kit/appmetrics/metrics/tags"
	"github.com/go-kit/appmetrics/metrics/timer"
)

func reservoirOf(t *testing.T, tm *timer.Timer) reservoir.Reservoir {
	t.Helper()
	h, ok := tm.Histogram().(*histogram.Histogram)
	if !ok {
		t.Fatalf("timer histogram is %T", tm.Histogram())
	}
	return h.Reservoir()
}

func countingFactory(calls *atomic.Int64) reservoir.Factory {
	return func() reservoir.Reservoir {
		calls.Add(1)
		return reservoir.MustNewUniform(reservoir.DefaultSize)
	}
}

func TestInstanceIsIdempotent(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	opts := registry.TimerOptions{Options: registry.Options{Name: "requests"}}

	a, err := r.Timer().Instance(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Timer().Instance(opts)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("two lookups of the same key returned different timers")
	}
	if reservoirOf(t, a) != reservoirOf(t, b) {
		t.Errorf("two lookups of the same key returned different reservoirs")
	}

	c, err := r.Timer().Tagged(opts, tags.Empty)
	if err != nil {
		t.Fatal(err)
	}
	if a != c {
		t.Errorf("empty tags should select the untagged timer")
	}
}

func TestTagOrderDoesNotMatter(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	opts := registry.TimerOptions{Options: registry.Options{Name: "requests"}}

	a, err := r.Timer().Tagged(opts, tags.MustFromPairs([]string{"method", "code"}, []string{"GET", "200"}))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Timer().Tagged(opts, tags.MustFromPairs([]string{"code", "method"}, []string{"200", "GET"}))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("permuted tags returned different timers")
	}
	c, err := r.Timer().Tagged(opts, tags.MustFromPairs([]string{"code", "method"}, []string{"500", "GET"}))
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Errorf("different tags returned the same timer")
	}
}

func TestTaggedTimersDoNotShareSamples(t *testing.T) {
	var calls atomic.Int64
	r := registry.New(registry.WithClock(clock.NewManual()))
	opts := registry.TimerOptions{
		Options:   registry.Options{Name: "test"},
		Reservoir: countingFactory(&calls),
	}

	a, err := r.Timer().Tagged(opts, tags.New("test", "1"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Timer().Tagged(opts, tags.New("test", "2"))
	if err != nil {
		t.Fatal(err)
	}
	if want, have := int64(2), calls.Load(); want != have {
		t.Errorf("factory calls: want %d, have %d", want, have)
	}
	if reservoirOf(t, a) == reservoirOf(t, b) {
		t.Fatalf("tagged timers share a reservoir")
	}

	for i := 0; i < 5; i++ {
		if err := a.Record(100, time.Second); err != nil {
			t.Fatal(err)
		}
	}

	sa, sb := a.Snapshot(false).Histogram, b.Snapshot(false).Histogram
	if want, have := int64(5), sa.Count; want != have {
		t.Errorf("A count: want %d, have %d", want, have)
	}
	if want, have := 100000.0, sa.Mean; want != have {
		t.Errorf("A mean: want %v, have %v", want, have)
	}
	if want, have := int64(0), sb.Count; want != have {
		t.Errorf("B count: want %d, have %d", want, have)
	}
	if want, have := 0.0, sb.Mean; want != have {
		t.Errorf("B mean: want %v, have %v", want, have)
	}
	if want, have := 0, sb.SampleSize; want != have {
		t.Errorf("B sample size: want %d, have %d", want, have)
	}
}

func TestScopedTimingEndToEnd(t *testing.T) {
	clk := clock.NewManual()
	uniform, err := reservoir.UniformFactory(1028)
	if err != nil {
		t.Fatal(err)
	}
	r := registry.New(registry.WithClock(clk))
	tm, err := r.Timer().Instance(registry.TimerOptions{
		Options:   registry.Options{Name: "scoped"},
		Reservoir: uniform,
	})
	if err != nil {
		t.Fatal(err)
	}

	func() {
		defer tm.NewContext().End()
		clk.AdvanceBy(time.Millisecond, 100)
	}()

	data, ok := r.GetData(filter.New()).Context(registry.DefaultContext)
	if !ok {
		t.Fatalf("default context missing")
	}
	s, ok := data.Timer("scoped")
	if !ok {
		t.Fatalf("timer missing")
	}
	h := s.Histogram
	if want, have := int64(1), h.Count; want != have {
		t.Errorf("count: want %d, have %d", want, have)
	}
	for name, have := range map[string]float64{"mean": h.Mean, "min": h.Min, "max": h.Max} {
		if want := 100.0; want != have {
			t.Errorf("%s: want %v, have %v", name, want, have)
		}
	}
}

func TestFactoryIgnoredForExistingKey(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	opts := registry.HistogramOptions{Options: registry.Options{Name: "sizes"}}

	var first, second atomic.Int64
	a, err := r.Histogram().WithReservoir(opts, tags.Empty, countingFactory(&first))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Histogram().WithReservoir(opts, tags.Empty, countingFactory(&second))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("second lookup created a new histogram")
	}
	if want, have := int64(1), first.Load(); want != have {
		t.Errorf("first factory: want %d calls, have %d", want, have)
	}
	if want, have := int64(0), second.Load(); want != have {
		t.Errorf("second factory: want %d calls, have %d", want, have)
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	var calls atomic.Int64
	r := registry.New(registry.WithClock(clock.NewManual()), registry.WithDefaultReservoir(countingFactory(&calls)))
	opts := registry.TimerOptions{Options: registry.Options{Name: "contended", Tags: tags.New("k", "v")}}

	const n = 64
	timers := make([]*timer.Timer, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			tm, err := r.Timer().Instance(opts)
			timers[i] = tm
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, tm := range timers {
		if tm != timers[0] {
			t.Fatalf("goroutine %d got a different timer", i)
		}
	}
	if want, have := int64(1), calls.Load(); want != have {
		t.Errorf("factory calls: want %d, have %d", want, have)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	c, err := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "jobs"}})
	if err != nil {
		t.Fatal(err)
	}
	c.Increment(2)

	_, err = r.Gauge().Instance(registry.GaugeOptions{Options: registry.Options{Name: "jobs"}})
	if !errors.Is(err, metrics.ErrDuplicateRegistration) {
		t.Fatalf("want ErrDuplicateRegistration, have %v", err)
	}

	// Same name in another context is a different metric.
	if _, err := r.Gauge().Instance(registry.GaugeOptions{Options: registry.Options{Context: "other", Name: "jobs"}}); err != nil {
		t.Fatal(err)
	}

	data, _ := r.GetData(filter.New()).Context(registry.DefaultContext)
	s, ok := data.Counter("jobs")
	if !ok {
		t.Fatalf("counter missing after rejected registration")
	}
	if want, have := int64(2), s.Count; want != have {
		t.Errorf("want %d, have %d", want, have)
	}
	if want, have := 0, len(data.Gauges); want != have {
		t.Errorf("want %d gauges, have %d", want, have)
	}
}

func TestInvalidOptions(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	for name, create := range map[string]func() error{
		"empty name": func() error {
			_, err := r.Timer().Instance(registry.TimerOptions{})
			return err
		},
		"separator in name": func() error {
			_, err := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "a|b"}})
			return err
		},
		"negative duration unit": func() error {
			_, err := r.Timer().Instance(registry.TimerOptions{Options: registry.Options{Name: "t"}, DurationUnit: -time.Second})
			return err
		},
		"nil reservoir": func() error {
			_, err := r.Histogram().WithReservoir(registry.HistogramOptions{Options: registry.Options{Name: "h"}}, tags.Empty,
				func() reservoir.Reservoir { return nil })
			return err
		},
		"nil reservoir in new context": func() error {
			_, err := r.Timer().WithReservoir(registry.TimerOptions{Options: registry.Options{Context: "ghost", Name: "t"}}, tags.Empty,
				func() reservoir.Reservoir { return nil })
			return err
		},
		"nil gauge function": func() error {
			_, err := r.Gauge().WithValue(registry.GaugeOptions{Options: registry.Options{Name: "g"}}, tags.Empty, nil)
			return err
		},
		"nil ratio function": func() error {
			_, err := r.Gauge().WithRatio(registry.GaugeOptions{Options: registry.Options{Name: "g"}}, tags.Empty, nil, func() float64 { return 1 })
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			if err := create(); !errors.Is(err, metrics.ErrInvalidOptions) {
				t.Errorf("want ErrInvalidOptions, have %v", err)
			}
		})
	}
	if have := r.Contexts(); len(have) != 0 {
		t.Errorf("rejected creations left contexts behind: %v", have)
	}
}

func TestRejectedCreationKeepsExistingContext(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	if _, err := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Context: "jobs", Name: "done"}}); err != nil {
		t.Fatal(err)
	}
	_, err := r.Histogram().WithReservoir(registry.HistogramOptions{Options: registry.Options{Context: "jobs", Name: "size"}}, tags.Empty,
		func() reservoir.Reservoir { return nil })
	if !errors.Is(err, metrics.ErrInvalidOptions) {
		t.Fatalf("want ErrInvalidOptions, have %v", err)
	}

	data, _ := r.GetData(filter.New()).Context("jobs")
	if want, have := 1, data.Len(); want != have {
		t.Errorf("want %d metrics, have %d", want, have)
	}
	if _, ok := data.Histogram("size"); ok {
		t.Errorf("rejected histogram was registered")
	}

	// The key is still free.
	if _, err := r.Histogram().Instance(registry.HistogramOptions{Options: registry.Options{Context: "jobs", Name: "size"}}); err != nil {
		t.Errorf("want no error, have %v", err)
	}
}

func TestRatioGauge(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	var hits, total atomic.Int64
	opts := registry.GaugeOptions{Options: registry.Options{Context: "cache", Name: "hit_ratio"}}
	g, err := r.Gauge().WithRatio(opts, tags.Empty,
		func() float64 { return float64(hits.Load()) },
		func() float64 { return float64(total.Load()) })
	if err != nil {
		t.Fatal(err)
	}

	ratio := func() float64 {
		t.Helper()
		data, _ := r.GetData(filter.New()).Context("cache")
		s, ok := data.Gauge("hit_ratio")
		if !ok {
			t.Fatal("ratio gauge not reported")
		}
		return s.Value
	}
	if want, have := 0.0, ratio(); want != have {
		t.Errorf("zero denominator: want %v, have %v", want, have)
	}

	hits.Store(3)
	total.Store(4)
	if want, have := 0.75, ratio(); want != have {
		t.Errorf("want %v, have %v", want, have)
	}
	if want, have := 0.75, g.Value(); want != have {
		t.Errorf("Value: want %v, have %v", want, have)
	}

	again, _ := r.Gauge().WithRatio(opts, tags.Empty, func() float64 { return 1 }, func() float64 { return 1 })
	if again != g {
		t.Errorf("second call created a new gauge")
	}
}

func TestGetDataFilters(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	tm, _ := r.Timer().Instance(registry.TimerOptions{Options: registry.Options{Context: "http", Name: "latency"}})
	tm.Record(5, time.Millisecond)
	m, _ := r.Meter().Tagged(registry.MeterOptions{Options: registry.Options{Context: "http", Name: "hits"}}, tags.New("method", "GET"))
	m.Mark(3)
	c, _ := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "jobs"}})
	c.Increment(1)

	all := r.GetData(filter.New())
	if want, have := 2, len(all.Contexts); want != have {
		t.Fatalf("want %d contexts, have %d", want, have)
	}
	if want, have := registry.DefaultContext, all.Contexts[0].Context; want != have {
		t.Errorf("contexts not sorted: want %q first, have %q", want, have)
	}

	httpOnly := r.GetData(filter.New().WhereContext(filter.Is("http")))
	if want, have := 1, len(httpOnly.Contexts); want != have {
		t.Fatalf("want %d contexts, have %d", want, have)
	}
	if want, have := 2, httpOnly.Contexts[0].Len(); want != have {
		t.Errorf("want %d metrics, have %d", want, have)
	}

	meters := r.GetData(filter.New().WhereType(metrics.KindMeter).WhereTaggedWithKeyValue("method", "GET"))
	hc, ok := meters.Context("http")
	if !ok {
		t.Fatalf("http context missing")
	}
	if want, have := 1, hc.Len(); want != have {
		t.Fatalf("want %d metrics, have %d", want, have)
	}
	e := hc.Meters[0]
	if want, have := "hits|method:GET", e.Name; want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if want, have := "hits", e.Base; want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if want, have := int64(3), e.Value.Count; want != have {
		t.Errorf("want %d, have %d", want, have)
	}
}

func TestResetOnReporting(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	resetting, _ := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "resetting", ResetOnReporting: true}})
	keeping, _ := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "keeping"}})
	resetting.Increment(3)
	keeping.Increment(3)

	for _, want := range []int64{3, 0} {
		data, _ := r.GetData(filter.New()).Context(registry.DefaultContext)
		s, _ := data.Counter("resetting")
		if have := s.Count; want != have {
			t.Errorf("resetting: want %d, have %d", want, have)
		}
		s, _ = data.Counter("keeping")
		if want, have := int64(3), s.Count; want != have {
			t.Errorf("keeping: want %d, have %d", want, have)
		}
	}
}

func TestClearAndRemoveContext(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	opts := registry.CounterOptions{Options: registry.Options{Context: "jobs", Name: "done"}}
	a, _ := r.Counter().Instance(opts)
	r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "other"}})

	if want, have := []string{registry.DefaultContext, "jobs"}, r.Contexts(); strings.Join(want, ",") != strings.Join(have, ",") {
		t.Errorf("want %v, have %v", want, have)
	}

	r.RemoveContext("jobs")
	b, _ := r.Counter().Instance(opts)
	if a == b {
		t.Errorf("removed context still returned the old counter")
	}
	b.Increment(3)
	data, _ := r.GetData(filter.New()).Context("jobs")
	if s, ok := data.Counter("done"); !ok || s.Count != 3 {
		t.Errorf("counter created after removal: want reported with count 3, have %+v (reported %v)", s, ok)
	}

	r.Clear()
	if want, have := 0, len(r.Contexts()); want != have {
		t.Errorf("want %d contexts, have %d", want, have)
	}
}

func TestCreateRacingRemoveContext(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	stop := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		for {
			select {
			case <-stop:
				return nil
			default:
				r.RemoveContext("jobs")
			}
		}
	})
	var creators errgroup.Group
	for _, name := range names {
		name := name
		creators.Go(func() error {
			for i := 0; i < 200; i++ {
				if _, err := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Context: "jobs", Name: name}}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := creators.Wait(); err != nil {
		t.Fatal(err)
	}
	close(stop)
	g.Wait()

	// Whatever survived, every instance handed out from now on is reported.
	for _, name := range names {
		c, err := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Context: "jobs", Name: name}})
		if err != nil {
			t.Fatal(err)
		}
		c.Increment(1)
	}
	data, _ := r.GetData(filter.New()).Context("jobs")
	for _, name := range names {
		if _, ok := data.Counter(name); !ok {
			t.Errorf("%s: counter not reported", name)
		}
	}
}

func TestRegistryReset(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	c, _ := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "jobs"}})
	c.Increment(7)
	r.Reset()
	if want, have := int64(0), c.Count(); want != have {
		t.Errorf("want %d, have %d", want, have)
	}
	c2, _ := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "jobs"}})
	if c != c2 {
		t.Errorf("reset dropped the registration")
	}
}

func TestLogsCreationAndRejection(t *testing.T) {
	var buf bytes.Buffer
	r := registry.New(registry.WithClock(clock.NewManual()), registry.WithLogger(log.NewLogfmtLogger(&buf)))
	r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "jobs"}})
	r.Gauge().Instance(registry.GaugeOptions{Options: registry.Options{Name: "jobs"}})

	out := buf.String()
	for _, want := range []string{
		`level=debug msg="metric created" context=application kind=counter name=jobs`,
		`level=warn msg="metric rejected" context=application kind=gauge name=jobs`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
