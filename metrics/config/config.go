// Package config loads registry and reporting settings from YAML.
//
//	default_context: checkout
//	reservoir:
//	  type: exponentially_decaying
//	  size: 1028
//	  alpha: 0.015
//	  rescale_interval: 1h
//	reporting:
//	  interval: 10s
//	  contexts: [checkout]
//	  kinds: [timer, meter]
package config

import (
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-kit/appmetrics/metrics"
	"github.com/go-kit/appmetrics/metrics/clock"
	"github.com/go-kit/appmetrics/metrics/filter"
	"github.com/go-kit/appmetrics/metrics/registry"
	"github.com/go-kit/appmetrics/metrics/reservoir"
)

// Reservoir types.
const (
	Uniform               = "uniform"
	ExponentiallyDecaying = "exponentially_decaying"
	SlidingWindow         = "sliding_window"
	HDR                   = "hdr"
	Streaming             = "streaming"
)

// Config is the top-level configuration document.
type Config struct {
	DefaultContext string    `yaml:"default_context"`
	Reservoir      Reservoir `yaml:"reservoir"`
	Reporting      Reporting `yaml:"reporting"`
}

// Reservoir selects the default reservoir for timers and histograms. Only
// the fields of the selected type are read.
type Reservoir struct {
	Type            string        `yaml:"type"`
	Size            int           `yaml:"size"`
	Alpha           float64       `yaml:"alpha"`
	RescaleInterval time.Duration `yaml:"rescale_interval"`
	HDR             HDRBounds     `yaml:"hdr"`
	Bins            int           `yaml:"bins"`
}

// HDRBounds configure an HDR reservoir.
type HDRBounds struct {
	Lowest             int64 `yaml:"lowest"`
	Highest            int64 `yaml:"highest"`
	SignificantFigures int   `yaml:"significant_figures"`
}

// Reporting configures the periodic log reporter.
type Reporting struct {
	// Interval between reports. Zero disables reporting.
	Interval time.Duration `yaml:"interval"`

	// Contexts and Kinds restrict what is reported. Empty means all.
	Contexts []string `yaml:"contexts"`
	Kinds    []string `yaml:"kinds"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads a YAML document from r, applies defaults and validates it.
// Unknown fields are an error. An empty document yields Default().
func Load(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile is Load from the named file.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening config")
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultContext == "" {
		c.DefaultContext = registry.DefaultContext
	}
	r := &c.Reservoir
	if r.Type == "" {
		r.Type = ExponentiallyDecaying
	}
	if r.Size == 0 {
		r.Size = reservoir.DefaultSize
	}
	if r.Alpha == 0 {
		r.Alpha = reservoir.DefaultAlpha
	}
	if r.RescaleInterval == 0 {
		r.RescaleInterval = reservoir.DefaultRescaleInterval
	}
	if r.HDR == (HDRBounds{}) {
		r.HDR = HDRBounds{Lowest: 1, Highest: int64(time.Hour), SignificantFigures: 3}
	}
	if r.Bins == 0 {
		r.Bins = 50
	}
}

// Validate checks the configuration without building anything from it.
func (c Config) Validate() error {
	if _, err := c.ReservoirFactory(clock.New()); err != nil {
		return err
	}
	if c.Reporting.Interval < 0 {
		return errors.Wrapf(metrics.ErrInvalidOptions, "reporting interval %v is negative", c.Reporting.Interval)
	}
	_, err := c.Filter()
	return err
}

// ReservoirFactory builds the configured reservoir factory.
func (c Config) ReservoirFactory(clk clock.Clock) (reservoir.Factory, error) {
	r := c.Reservoir
	switch r.Type {
	case Uniform:
		return reservoir.UniformFactory(r.Size)
	case ExponentiallyDecaying:
		return reservoir.ExponentiallyDecayingFactory(clk, r.Size, r.Alpha, r.RescaleInterval)
	case SlidingWindow:
		return reservoir.SlidingWindowFactory(r.Size)
	case HDR:
		return reservoir.HDRFactory(r.HDR.Lowest, r.HDR.Highest, r.HDR.SignificantFigures)
	case Streaming:
		return reservoir.StreamingFactory(r.Bins)
	default:
		return nil, errors.Wrapf(metrics.ErrInvalidOptions, "unknown reservoir type %q", r.Type)
	}
}

// RegistryOptions returns the options for a registry matching the
// configuration.
func (c Config) RegistryOptions(clk clock.Clock, logger log.Logger) ([]registry.Option, error) {
	f, err := c.ReservoirFactory(clk)
	if err != nil {
		return nil, err
	}
	return []registry.Option{
		registry.WithClock(clk),
		registry.WithDefaultReservoir(f),
		registry.WithDefaultContext(c.DefaultContext),
		registry.WithLogger(logger),
	}, nil
}

// Filter returns the filter selecting what the reporter reports.
func (c Config) Filter() (filter.Filter, error) {
	f := filter.New()
	if len(c.Reporting.Contexts) > 0 {
		f = f.WhereContext(filter.Is(c.Reporting.Contexts...))
	}
	if len(c.Reporting.Kinds) > 0 {
		kinds := make([]metrics.Kind, 0, len(c.Reporting.Kinds))
		for _, s := range c.Reporting.Kinds {
			k, ok := metrics.ParseKind(s)
			if !ok {
				return filter.Filter{}, errors.Wrapf(metrics.ErrInvalidOptions, "unknown metric kind %q", s)
			}
			kinds = append(kinds, k)
		}
		f = f.WhereType(kinds...)
	}
	return f, nil
}
