package coccache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigLowMemoryPresets(t *testing.T) {
	normal := NewConfig()
	assert.Equal(t, 8192, normal.datatableSize())
	assert.Equal(t, 2048, normal.hashtableSize())

	low := NewConfig(WithLowMemory(true))
	assert.Equal(t, 512, low.datatableSize())
	assert.Equal(t, 1201, low.hashtableSize())
}

func TestConfigDefaultsAreNonNil(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.Allocator)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Metrics)
	assert.False(t, cfg.Assertions)
	assert.False(t, cfg.TraceCache)
}

func TestConfigOptionsOverrideDefaults(t *testing.T) {
	cfg := NewConfig(
		WithAssertions(true),
		WithTraceCache(true),
		WithReuseDepletedHeads(true),
	)
	assert.True(t, cfg.Assertions)
	assert.True(t, cfg.TraceCache)
	assert.True(t, cfg.ReuseDepletedHeads)
}
