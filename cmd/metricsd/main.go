// Command metricsd hosts a metrics registry: it serves the registry to
// Prometheus and as text, and logs it periodically. With -demo it also
// records a synthetic workload.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/config"
	"github.com/go-kit/appmetrics/metrics/export/prometheus"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/registry"
	"github.com/go-kit/appmetrics/metrics/report"
	"github.com/go-kit/appmetrics/metrics/tags"
)

const defaultPort = "9090"

func main() {
	var (
		addr = envString("PORT", defaultPort)

		httpAddr   = flag.String("http.addr", ":"+addr, "HTTP listen address")
		configFile = flag.String("config", "", "YAML config file (defaults apply when empty)")
		namespace  = flag.String("namespace", "appmetrics", "Prometheus namespace")
		demo       = flag.Bool("demo", false, "record a synthetic workload")
		debug      = flag.Bool("debug", false, "log metric creation")
	)
	flag.Parse()

	var logger log.Logger
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			level.Error(logger).Log("during", "config", "err", err)
			os.Exit(1)
		}
	}

	clk := clock.New()
	opts, err := cfg.RegistryOptions(clk, log.With(logger, "component", "registry"))
	if err != nil {
		level.Error(logger).Log("during", "registry", "err", err)
		os.Exit(1)
	}
	r := registry.New(opts...)

	reportFilter, err := cfg.Filter()
	if err != nil {
		level.Error(logger).Log("during", "filter", "err", err)
		os.Exit(1)
	}

	promRegistry := stdprometheus.NewRegistry()
	promRegistry.MustRegister(prometheus.NewCollector(r, filter.New(), *namespace))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.Handle("/report", textHandler(r))

	var g run.Group
	{
		ln, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			level.Error(logger).Log("transport", "http", "during", "listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			level.Info(logger).Log("transport", "http", "address", *httpAddr, "msg", "listening")
			return http.Serve(ln, accessControl(mux))
		}, func(error) {
			ln.Close()
		})
	}
	if cfg.Reporting.Interval > 0 {
		reporter := report.NewLogReporter(log.With(logger, "component", "report"), r, reportFilter, cfg.Reporting.Interval, clk)
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return reporter.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	if *demo {
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return workload(ctx, r, clk)
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	level.Info(logger).Log("terminated", g.Run())
}

func textHandler(r *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.Print(w, r.GetData(filter.New())); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// workload records a request-like stream until ctx is canceled.
func workload(ctx context.Context, r *registry.Registry, clk clock.Clock) error {
	opts := registry.TimerOptions{Options: registry.Options{Context: "demo", Name: "request"}}
	inflight, err := r.Gauge().Instance(registry.GaugeOptions{Options: registry.Options{Context: "demo", Name: "inflight"}})
	if err != nil {
		return err
	}
	errs, err := r.Counter().Instance(registry.CounterOptions{Options: registry.Options{Context: "demo", Name: "errors"}})
	if err != nil {
		return err
	}

	ticker := clk.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		method := []string{"GET", "GET", "GET", "POST"}[rand.IntN(4)]
		t, err := r.Timer().Tagged(opts, tags.New("method", method))
		if err != nil {
			return err
		}
		latency := time.Duration(rand.NormFloat64()*float64(20*time.Millisecond)) + 50*time.Millisecond
		if latency < 0 {
			latency = 0
		}
		if err := t.RecordWithUserValue(int64(latency), time.Nanosecond, fmt.Sprintf("req-%d", rand.IntN(1000))); err != nil {
			return err
		}
		inflight.Set(float64(rand.IntN(8)))
		if rand.IntN(50) == 0 {
			errs.IncrementItem(method, 1)
		}
	}
}

func accessControl(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		h.ServeHTTP(w, r)
	})
}

func envString(env, fallback string) string {
	e := os.Getenv(env)
	if e == "" {
		return fallback
	}
	return e
}
