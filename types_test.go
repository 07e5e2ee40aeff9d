package coccache

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloatBitsRoundTrip(t *testing.T) {
	for _, v := range []float32{0, -0, 0.5, 1, -1.25, 3.14159, float32(math.Inf(1))} {
		assert.Equal(t, v, float32frombits(floatBits(v)))
	}
}

func TestFloatBitsNaNNotCanonicalised(t *testing.T) {
	a := math.Float32frombits(0x7fc00001)
	b := math.Float32frombits(0x7fc00002)
	assert.NotEqual(t, floatBits(a), floatBits(b))
}

func TestPackBlackTypeRoundTrip(t *testing.T) {
	bt := PackBlackType(5, 6)
	assert.Equal(t, uint8(5), bt.Lookup())
	assert.Equal(t, uint8(6), bt.Insert())
}

func TestEntryStyleString(t *testing.T) {
	assert.Equal(t, "DLColor", StyleDLColor.String())
	assert.Equal(t, "FinalLink", StyleFinalLink.String())
	assert.Equal(t, "unknown", EntryStyle(99).String())
}
