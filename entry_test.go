package coccache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesDLColorBitExact(t *testing.T) {
	e := &CacheEntry{
		input:     []uint32{floatBits(0.5), floatBits(1.0)},
		opacity:   Opacity(0.75),
		blackType: PackBlackType(2, 3),
	}

	assert.True(t, e.matchesDLColor(
		[]uint32{floatBits(0.5), floatBits(1.0)}, opacityBits(0.75), 2))

	// Opacity differs by a single bit -> miss (P9).
	nextAfter := floatBits(0.75) + 1
	assert.False(t, e.matchesDLColor(
		[]uint32{floatBits(0.5), floatBits(1.0)}, nextAfter, 2))

	// Black-type lookup nibble differs -> miss.
	assert.False(t, e.matchesDLColor(
		[]uint32{floatBits(0.5), floatBits(1.0)}, opacityBits(0.75), 5))

	// Input differs by a single bit -> miss.
	assert.False(t, e.matchesDLColor(
		[]uint32{floatBits(0.5) + 1, floatBits(1.0)}, opacityBits(0.75), 2))
}

func TestMatchesFinalLinkBitExact(t *testing.T) {
	e := &CacheEntry{input: []uint32{floatBits(0.25)}}

	assert.True(t, e.matchesFinalLink([]uint32{floatBits(0.25)}))
	assert.False(t, e.matchesFinalLink([]uint32{floatBits(0.25) + 1}))
	assert.False(t, e.matchesFinalLink([]uint32{floatBits(0.25), floatBits(0.5)}))
}
