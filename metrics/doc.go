// Package metrics is the root of an in-process instrumentation engine. All
// metrics are safe for concurrent use. Considerable design influence has been
// taken from https://github.com/codahale/metrics and
// https://github.com/AppMetrics/AppMetrics.
//
// Application code records observations against named, optionally tagged
// metrics obtained from a registry:
//
//	r := registry.New()
//	t, err := r.Timer().Instance(registry.TimerOptions{
//	    Options: registry.Options{Name: "request_latency"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer t.NewContext().End()
//
// Timers and histograms sample their observations through a reservoir (see
// package reservoir) while keeping exact counts, sums and extremes, so counts
// and means are exact and percentiles are approximate. Exporters read state
// through registry.GetData, which returns immutable snapshots.
//
// This package holds the types shared by every subpackage: metric kinds,
// units and the error values returned across the module.
package metrics
