package coccache

import "go.uber.org/zap"

// MetricsRecorder accepts snapshots of a CacheState's aggregate counters.
// Config carries one, but nothing in this package calls RecordSnapshot:
// callers pass CacheState.Snapshot() results to it. It is the seam internal/telemetry hooks into; the core package
// never imports a metrics library itself (see SPEC_FULL.md §10).
type MetricsRecorder interface {
	RecordSnapshot(Snapshot)
}

type noopMetrics struct{}

func (noopMetrics) RecordSnapshot(Snapshot) {}

// Config selects the two memory-pressure presets from spec §4.A/§4.E and
// wires the ambient concerns (logging, allocation-failure injection,
// metrics, assertions, tracing) a production cache needs around the core
// algorithm.
type Config struct {
	// LowMemory selects the reduced-footprint presets: 512-byte DataTables
	// and 1201-slot per-head hashtables, instead of 8192/2048.
	LowMemory bool

	// Allocator is consulted before every allocation a CacheHead/CacheState
	// makes after being linked into its directory. Defaults to
	// RealAllocator{}.
	Allocator Allocator

	// Logger receives a debug message when head creation fails to
	// allocate. Purge, reset and low-memory solicit/release are not
	// logged. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics holds a recorder for aggregate snapshots. The cache never
	// calls it itself. Defaults to a no-op recorder.
	Metrics MetricsRecorder

	// Assertions enables the logic-violation checks mirroring the
	// original's HQASSERT. Off by default (production posture); tests
	// enable it to catch invariant regressions eagerly.
	Assertions bool

	// TraceCache records whether population/depth tracing (the original's
	// #ifdef TRACE_CACHE block) was requested. Off by default. Nothing in
	// this package reads it: CacheHead.DepthHistogram and
	// CacheState.BucketHistogram compute on every call regardless, and
	// nothing logs them.
	TraceCache bool

	// ReuseDepletedHeads enables the original's (compiled-out in the
	// shipped build) depth-reuse heuristic: HeadCreate scans up to
	// HeadHashReuseLimit existing heads in the target directory bucket for
	// one with refCnt == 0 && hashtable == nil before allocating a new one.
	ReuseDepletedHeads bool
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithLowMemory selects the reduced-footprint table/bucket presets.
func WithLowMemory(lowMemory bool) Option {
	return func(c *Config) { c.LowMemory = lowMemory }
}

// WithAllocator overrides the Allocator, e.g. to inject deterministic
// allocation failure in tests.
func WithAllocator(a Allocator) Option {
	return func(c *Config) { c.Allocator = a }
}

// WithLogger overrides the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics overrides the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithAssertions enables or disables HQASSERT-style invariant checks.
func WithAssertions(enabled bool) Option {
	return func(c *Config) { c.Assertions = enabled }
}

// WithTraceCache sets Config.TraceCache.
func WithTraceCache(enabled bool) Option {
	return func(c *Config) { c.TraceCache = enabled }
}

// WithReuseDepletedHeads enables the original's depth-reuse heuristic for
// HeadCreate.
func WithReuseDepletedHeads(enabled bool) Option {
	return func(c *Config) { c.ReuseDepletedHeads = enabled }
}

// NewConfig builds a Config with defaults matching a zero-overhead
// production posture (real allocator, no-op logging/metrics, no
// assertions, no tracing, no low-memory preset), then applies opts.
func NewConfig(opts ...Option) Config {
	c := Config{
		LowMemory:  false,
		Allocator:  RealAllocator{},
		Logger:     zap.NewNop(),
		Metrics:    noopMetrics{},
		Assertions: false,
		TraceCache: false,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Allocator == nil {
		c.Allocator = RealAllocator{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	return c
}

// datatableSize returns the DataTable byte budget for this config (spec
// §4.A / §6).
func (c Config) datatableSize() int {
	if c.LowMemory {
		return 512
	}
	return 8192
}

// hashtableSize returns the per-head hashtable bucket count for this
// config (spec §4.A / §6).
func (c Config) hashtableSize() int {
	if c.LowMemory {
		return 1201
	}
	return 2048
}
