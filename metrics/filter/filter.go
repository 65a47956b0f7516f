// Package filter selects which contexts and metrics a registry read returns.
// A Filter is a value; each Where method returns a narrowed copy, so filters
// can be built up and shared freely.
//
//	f := filter.New().
//		WhereContext(filter.Is("http")).
//		WhereType(metrics.KindTimer, metrics.KindMeter).
//		WhereTaggedWithKeyValue("method", "GET")
package filter

import (
	"strings"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/tags"
)

// Metric describes one registered metric for matching purposes.
type Metric struct {
	Context string
	Kind    metrics.Kind
	Name    string // name including serialized tags
	Base    string // name without tags
	Tags    tags.Tags
}

// Filter is a conjunction of predicates, optionally widened by alternatives
// with Or. The zero value matches everything.
type Filter struct {
	contexts []func(string) bool
	kinds    []metrics.Kind
	preds    []func(Metric) bool
	or       []Filter
}

// New returns a filter that matches everything.
func New() Filter { return Filter{} }

// Is returns a string predicate matching any of names.
func Is(names ...string) func(string) bool {
	return func(s string) bool {
		for _, n := range names {
			if s == n {
				return true
			}
		}
		return false
	}
}

// WhereContext restricts to contexts whose name satisfies pred.
func (f Filter) WhereContext(pred func(string) bool) Filter {
	f.contexts = append(append([]func(string) bool(nil), f.contexts...), pred)
	return f
}

// WhereType restricts to the given metric kinds. Kinds passed in one call
// are alternatives; successive calls intersect.
func (f Filter) WhereType(kinds ...metrics.Kind) Filter {
	if f.kinds != nil {
		var both []metrics.Kind
		for _, k := range kinds {
			if containsKind(f.kinds, k) {
				both = append(both, k)
			}
		}
		kinds = both
	}
	f.kinds = append([]metrics.Kind{}, kinds...)
	return f
}

// WhereMetricName restricts to metrics whose base name satisfies pred.
func (f Filter) WhereMetricName(pred func(string) bool) Filter {
	return f.Where(func(m Metric) bool { return pred(m.Base) })
}

// WhereNameStartsWith restricts to metrics whose base name has the prefix.
func (f Filter) WhereNameStartsWith(prefix string) Filter {
	return f.Where(func(m Metric) bool { return strings.HasPrefix(m.Base, prefix) })
}

// WhereTaggedWithKey restricts to metrics carrying a tag with any of keys.
func (f Filter) WhereTaggedWithKey(keys ...string) Filter {
	return f.Where(func(m Metric) bool {
		for _, k := range keys {
			if _, ok := m.Tags.Get(k); ok {
				return true
			}
		}
		return false
	})
}

// WhereTaggedWithKeyValue restricts to metrics carrying the exact pair.
func (f Filter) WhereTaggedWithKeyValue(key, value string) Filter {
	return f.Where(func(m Metric) bool {
		v, ok := m.Tags.Get(key)
		return ok && v == value
	})
}

// Where adds an arbitrary metric predicate.
func (f Filter) Where(pred func(Metric) bool) Filter {
	f.preds = append(append([]func(Metric) bool(nil), f.preds...), pred)
	return f
}

// Or widens f to also match anything any of the alternatives match.
func (f Filter) Or(alternatives ...Filter) Filter {
	f.or = append(append([]Filter(nil), f.or...), alternatives...)
	return f
}

// MatchContext reports whether any metric in the named context could match.
func (f Filter) MatchContext(name string) bool {
	if f.matchContext(name) {
		return true
	}
	for _, alt := range f.or {
		if alt.MatchContext(name) {
			return true
		}
	}
	return false
}

// MatchKind reports whether any metric of the kind could match.
func (f Filter) MatchKind(k metrics.Kind) bool {
	if f.matchKind(k) {
		return true
	}
	for _, alt := range f.or {
		if alt.MatchKind(k) {
			return true
		}
	}
	return false
}

// Match reports whether m passes the filter.
func (f Filter) Match(m Metric) bool {
	if f.match(m) {
		return true
	}
	for _, alt := range f.or {
		if alt.Match(m) {
			return true
		}
	}
	return false
}

func (f Filter) match(m Metric) bool {
	if !f.matchContext(m.Context) || !f.matchKind(m.Kind) {
		return false
	}
	for _, pred := range f.preds {
		if !pred(m) {
			return false
		}
	}
	return true
}

func (f Filter) matchContext(name string) bool {
	for _, pred := range f.contexts {
		if !pred(name) {
			return false
		}
	}
	return true
}

func (f Filter) matchKind(k metrics.Kind) bool {
	return f.kinds == nil || containsKind(f.kinds, k)
}

func containsKind(kinds []metrics.Kind, k metrics.Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
