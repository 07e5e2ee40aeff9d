package coccache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTableCapacityAtLeastOne(t *testing.T) {
	// A budget too small for even one entry still yields capacity 1, never 0.
	capacity := dataTableCapacity(StyleFinalLink, 32, 32, 8)
	assert.Equal(t, 1, capacity)
}

func TestDataTableCapacityShrinksWithArity(t *testing.T) {
	small := dataTableCapacity(StyleFinalLink, 1, 1, 8192)
	large := dataTableCapacity(StyleFinalLink, 8, 8, 8192)
	assert.Greater(t, small, large)
}

func TestNewDataTableAllocAndFull(t *testing.T) {
	cfg := NewConfig()
	dt, ok := newDataTable(cfg, StyleFinalLink, 1, 1)
	require.True(t, ok)
	require.NotNil(t, dt)

	capacity := len(dt.entries)
	for i := 0; i < capacity; i++ {
		require.False(t, dt.full(), "table reported full before capacity reached at slot %d", i)
		e := dt.alloc()
		require.NotNil(t, e)
		require.Len(t, e.input, 1)
		require.Len(t, e.output, 1)
	}
	assert.True(t, dt.full())
}

func TestNewDataTableStyleDLColorHasNoOutputSlice(t *testing.T) {
	cfg := NewConfig()
	dt, ok := newDataTable(cfg, StyleDLColor, 3, 0)
	require.True(t, ok)
	e := dt.alloc()
	assert.Len(t, e.input, 3)
	assert.Nil(t, e.output)
}

func TestNewDataTableAllocationFailure(t *testing.T) {
	cfg := NewConfig(WithAllocator(alwaysFailAllocator{}))
	dt, ok := newDataTable(cfg, StyleFinalLink, 1, 1)
	assert.False(t, ok)
	assert.Nil(t, dt)
}

func TestDataTableEntriesShareBackingNotAliased(t *testing.T) {
	cfg := NewConfig()
	dt, ok := newDataTable(cfg, StyleFinalLink, 2, 1)
	require.True(t, ok)
	a := dt.alloc()
	b := dt.alloc()
	a.input[0] = 111
	b.input[0] = 222
	assert.Equal(t, uint32(111), a.input[0])
	assert.Equal(t, uint32(222), b.input[0])
}
