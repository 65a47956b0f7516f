package metrics

import "time"

// Kind identifies one of the metric types a registry can hold.
type Kind int

// Metric kinds, in the order snapshots present them.
const (
	KindTimer Kind = iota
	KindHistogram
	KindMeter
	KindCounter
	KindGauge
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindTimer, KindHistogram, KindMeter, KindCounter, KindGauge}

func (k Kind) String() string {
	switch k {
	case KindTimer:
		return "timer"
	case KindHistogram:
		return "histogram"
	case KindMeter:
		return "meter"
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// ParseKind returns the Kind named by s, as produced by Kind.String.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Unit is an advisory display unit for the values a metric records. It is
// carried into snapshots untouched.
type Unit string

// Common measurement units.
const (
	UnitNone     Unit = ""
	UnitBytes    Unit = "B"
	UnitCalls    Unit = "calls"
	UnitErrors   Unit = "errors"
	UnitEvents   Unit = "events"
	UnitItems    Unit = "items"
	UnitRequests Unit = "req"
	UnitPercent  Unit = "%"
)

// DurationUnitName returns the conventional short name of a duration unit,
// e.g. "ms" for time.Millisecond.
func DurationUnitName(d time.Duration) string {
	switch d {
	case time.Nanosecond:
		return "ns"
	case time.Microsecond:
		return "us"
	case time.Millisecond:
		return "ms"
	case time.Second:
		return "s"
	case time.Minute:
		return "m"
	case time.Hour:
		return "h"
	default:
		return d.String()
	}
}

// Item is the share of a counter or meter attributed to one named item.
type Item struct {
	Item    string
	Count   int64
	Percent float64
}
