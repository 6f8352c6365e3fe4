package hostctx

// © 2026 robinstat authors. MIT License.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config is the functional-options bag every specialization and the stats
// aggregator build their own typed constructors around, following the
// teacher cache's config[K,V]/Option[K,V]/applyOptions shape but shared
// once here instead of duplicated per package.
type Config struct {
	InitialCapacity  uint32
	MaxProbeDistance uint8
	Logger           *zap.Logger
	Metrics          MetricsSink
	Strings          StringHasher
	Bytes            BytesHasher
	Gc               GcSink
}

// Option mutates a Config during construction.
type Option func(*Config)

var (
	errInvalidInitialCapacity = errors.New("hostctx: initial capacity must be > 0")
	errInvalidMaxProbe        = errors.New("hostctx: max probe distance must be in [1,255]")
)

// DefaultConfig mirrors defaultConfig: a sane, fully no-op baseline every
// WithXxx option overrides piecemeal.
func DefaultConfig() Config {
	h := NewMapHasher()
	return Config{
		InitialCapacity:  8,
		MaxProbeDistance: DefaultMaxProbeDistanceConst,
		Logger:           zap.NewNop(),
		Metrics:          NoopMetrics{},
		Strings:          h,
		Bytes:            h,
		Gc:               NoopGcSink{},
	}
}

// DefaultMaxProbeDistanceConst mirrors rhlayout.DefaultMaxProbeDistance
// without importing internal/rhlayout from an exported package.
const DefaultMaxProbeDistanceConst = 254

func WithInitialCapacity(n uint32) Option {
	return func(c *Config) { c.InitialCapacity = n }
}

func WithMaxProbeDistance(n uint8) Option {
	return func(c *Config) { c.MaxProbeDistance = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics wires a *PromMetrics (or any MetricsSink) built against a
// caller-owned registry, matching the teacher cache's WithMetrics option.
func WithMetrics(sink MetricsSink) Option {
	return func(c *Config) { c.Metrics = sink }
}

// WithPrometheusRegistry is sugar over WithMetrics(NewPromMetrics(reg)).
func WithPrometheusRegistry(reg prometheus.Registerer) Option {
	return func(c *Config) { c.Metrics = NewPromMetrics(reg) }
}

func WithStringHasher(h StringHasher) Option {
	return func(c *Config) { c.Strings = h }
}

func WithBytesHasher(h BytesHasher) Option {
	return func(c *Config) { c.Bytes = h }
}

// WithGcSink wires a host garbage collector's write-barrier/worklist-add
// hooks into the stats aggregator built from this Config (the hash tables
// do not consult Config.Gc; ptrhash.Mark takes its sink as an argument), used when
// this module is embedded in a program running its own external collector
// underneath the Go runtime's.
func WithGcSink(sink GcSink) Option {
	return func(c *Config) { c.Gc = sink }
}

// Apply runs every option over DefaultConfig and validates the result,
// mirroring applyOptions's validate-after-apply shape.
func Apply(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.InitialCapacity == 0 {
		return Config{}, errInvalidInitialCapacity
	}
	if cfg.MaxProbeDistance == 0 {
		return Config{}, errInvalidMaxProbe
	}
	return cfg, nil
}
