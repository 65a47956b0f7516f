package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/registry"
)

func TestTextHandler(t *testing.T) {
	r := registry.New(registry.WithClock(clock.NewManual()))
	c, _ := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Name: "jobs"}})
	c.Increment(1)

	rec := httptest.NewRecorder()
	accessControl(textHandler(r)).ServeHTTP(rec, httptest.NewRequest("GET", "/report", nil))
	if want, have := http.StatusOK, rec.Code; want != have {
		t.Fatalf("want %d, have %d", want, have)
	}
	if body := rec.Body.String(); !strings.Contains(body, "jobs") {
		t.Errorf("report missing counter:\n%s", body)
	}
	if want, have := "*", rec.Header().Get("Access-Control-Allow-Origin"); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}

func TestWorkloadRecords(t *testing.T) {
	clk := clock.NewManual()
	r := registry.New(registry.WithClock(clk))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- workload(ctx, r, clk) }()

	deadline := time.After(5 * time.Second)
	for {
		clk.Advance(10 * time.Millisecond)
		data, ok := r.GetData(filter.New().WhereContext(filter.Is("demo"))).Context("demo")
		if ok && len(data.Timers) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("workload recorded nothing")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	if want, have := context.Canceled, <-done; want != have {
		t.Errorf("want %v, have %v", want, have)
	}
}
