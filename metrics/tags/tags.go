// Package tags implements metric tags: sets of key/value dimensions that
// qualify a metric name. Two tag sets with the same pairs are the same
// identity regardless of the order they were given in.
//
// A tagged metric is indexed under a derived, multidimensional name:
//
//	tags.FromMap(map[string]string{"method": "GET", "code": "200"}).AsMetricName("requests")
//	// requests|code:200,method:GET
package tags

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-kit/appmetrics/metrics"
)

// Separators used by AsMetricName. Keys must not contain any of them; values
// must not contain PairDelimiter.
const (
	NameSeparator = "|"
	PairDelimiter = ","
	KeyValueSep   = ":"
)

// Tags is an immutable set of unique key/value pairs, kept sorted by key. The
// zero value is the empty set.
type Tags struct {
	keys   []string
	values []string
}

// Empty is the empty tag set.
var Empty = Tags{}

// New returns a tag set with a single pair.
func New(key, value string) Tags {
	return Tags{keys: []string{key}, values: []string{value}}
}

// FromMap returns a tag set with the pairs in m.
func FromMap(m map[string]string) Tags {
	t := Tags{keys: make([]string, 0, len(m)), values: make([]string, 0, len(m))}
	for k := range m {
		t.keys = append(t.keys, k)
	}
	sort.Strings(t.keys)
	for _, k := range t.keys {
		t.values = append(t.values, m[k])
	}
	return t
}

// FromPairs returns a tag set from parallel key and value slices. Keys must
// be unique, non-empty and free of separators.
func FromPairs(keys, values []string) (Tags, error) {
	if len(keys) != len(values) {
		return Empty, errors.Wrapf(metrics.ErrInvalidOptions, "tags: %d keys but %d values", len(keys), len(values))
	}
	t := Tags{keys: append([]string(nil), keys...), values: append([]string(nil), values...)}
	t.sort()
	if err := t.Validate(); err != nil {
		return Empty, err
	}
	return t, nil
}

// MustFromPairs is like FromPairs but panics on invalid input.
func MustFromPairs(keys, values []string) Tags {
	t, err := FromPairs(keys, values)
	if err != nil {
		panic(err)
	}
	return t
}

// FromKeyvals returns a tag set from alternating keys and values, in the
// manner of go-kit log. A trailing key without a value gets the value
// "unknown".
func FromKeyvals(keyvals ...string) (Tags, error) {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "unknown")
	}
	keys := make([]string, 0, len(keyvals)/2)
	values := make([]string, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		keys = append(keys, keyvals[i])
		values = append(values, keyvals[i+1])
	}
	return FromPairs(keys, values)
}

func (t *Tags) sort() {
	sort.Stable(byKey{t})
}

type byKey struct{ t *Tags }

func (b byKey) Len() int           { return len(b.t.keys) }
func (b byKey) Less(i, j int) bool { return b.t.keys[i] < b.t.keys[j] }
func (b byKey) Swap(i, j int) {
	b.t.keys[i], b.t.keys[j] = b.t.keys[j], b.t.keys[i]
	b.t.values[i], b.t.values[j] = b.t.values[j], b.t.values[i]
}

// Validate reports whether t can be serialized unambiguously.
func (t Tags) Validate() error {
	for i, k := range t.keys {
		if k == "" {
			return errors.Wrap(metrics.ErrInvalidOptions, "tags: empty key")
		}
		if strings.ContainsAny(k, NameSeparator+PairDelimiter+KeyValueSep) {
			return errors.Wrapf(metrics.ErrInvalidOptions, "tags: key %q contains a separator", k)
		}
		if strings.Contains(t.values[i], PairDelimiter) {
			return errors.Wrapf(metrics.ErrInvalidOptions, "tags: value %q of key %q contains %q", t.values[i], k, PairDelimiter)
		}
		if i > 0 && t.keys[i-1] == k {
			return errors.Wrapf(metrics.ErrInvalidOptions, "tags: duplicate key %q", k)
		}
	}
	return nil
}

// Len returns the number of pairs.
func (t Tags) Len() int { return len(t.keys) }

// IsEmpty reports whether t has no pairs.
func (t Tags) IsEmpty() bool { return len(t.keys) == 0 }

// Keys returns the keys in canonical order.
func (t Tags) Keys() []string { return append([]string(nil), t.keys...) }

// Values returns the values, in the order of Keys.
func (t Tags) Values() []string { return append([]string(nil), t.values...) }

// Get returns the value of key.
func (t Tags) Get(key string) (string, bool) {
	i := sort.SearchStrings(t.keys, key)
	if i < len(t.keys) && t.keys[i] == key {
		return t.values[i], true
	}
	return "", false
}

// Merge returns the union of t and other. Where both have a key, other's
// value wins.
func (t Tags) Merge(other Tags) Tags {
	if other.IsEmpty() {
		return t
	}
	if t.IsEmpty() {
		return other
	}
	m := t.ToMap()
	for i, k := range other.keys {
		m[k] = other.values[i]
	}
	return FromMap(m)
}

// ToMap returns the pairs as a new map.
func (t Tags) ToMap() map[string]string {
	m := make(map[string]string, len(t.keys))
	for i, k := range t.keys {
		m[k] = t.values[i]
	}
	return m
}

// Equal reports whether t and other hold the same pairs.
func (t Tags) Equal(other Tags) bool {
	return t.String() == other.String()
}

// String returns the canonical serialization, e.g. "a:1,b:2".
func (t Tags) String() string {
	var b strings.Builder
	for i, k := range t.keys {
		if i > 0 {
			b.WriteString(PairDelimiter)
		}
		b.WriteString(k)
		b.WriteString(KeyValueSep)
		b.WriteString(t.values[i])
	}
	return b.String()
}

// AsMetricName derives the name a tagged metric is indexed under. The empty
// set yields base unchanged.
func (t Tags) AsMetricName(base string) string {
	if t.IsEmpty() {
		return base
	}
	return base + NameSeparator + t.String()
}

// ParseMetricName splits a name produced by AsMetricName into its base name
// and tags.
func ParseMetricName(name string) (string, Tags, error) {
	i := strings.Index(name, NameSeparator)
	if i < 0 {
		return name, Empty, nil
	}
	base, rest := name[:i], name[i+len(NameSeparator):]
	pairs := strings.Split(rest, PairDelimiter)
	keys := make([]string, 0, len(pairs))
	values := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		kv := strings.SplitN(pair, KeyValueSep, 2)
		if len(kv) != 2 {
			return "", Empty, errors.Wrapf(metrics.ErrInvalidOptions, "tags: malformed pair %q in %q", pair, name)
		}
		keys = append(keys, kv[0])
		values = append(values, kv[1])
	}
	t, err := FromPairs(keys, values)
	if err != nil {
		return "", Empty, err
	}
	return base, t, nil
}
