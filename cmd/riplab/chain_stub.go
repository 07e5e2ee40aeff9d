package main

import (
	"math/rand"
	"sync/atomic"

	"github.com/rasterworks/coccache"
)

// fakeDeviceColorPool is a trivial, refcounted stand-in for a RIP's
// display-list color allocator: every reserved handle is just an
// incrementing id, refcounted so Release below zero is caught by the
// same "free_candidate" reasoning coccache.CacheHead itself uses.
type fakeDeviceColorPool struct {
	nextID int64
	refs   map[int64]*int32
}

func newFakeDeviceColorPool() *fakeDeviceColorPool {
	return &fakeDeviceColorPool{refs: make(map[int64]*int32)}
}

func (p *fakeDeviceColorPool) alloc() coccache.DeviceColor {
	id := atomic.AddInt64(&p.nextID, 1)
	ref := int32(1)
	p.refs[id] = &ref
	return coccache.NewDeviceColor(id)
}

func (p *fakeDeviceColorPool) Reserve(c coccache.DeviceColor) {
	if ref, ok := p.handleRef(c); ok {
		atomic.AddInt32(ref, 1)
	}
}

func (p *fakeDeviceColorPool) Copy(dst *coccache.DeviceColor, src coccache.DeviceColor) bool {
	if ref, ok := p.handleRef(src); ok {
		atomic.AddInt32(ref, 1)
		*dst = src
		return true
	}
	return false
}

func (p *fakeDeviceColorPool) Release(c coccache.DeviceColor) {
	if ref, ok := p.handleRef(c); ok {
		if atomic.AddInt32(ref, -1) <= 0 {
			if id, ok := c.Handle().(int64); ok {
				delete(p.refs, id)
			}
		}
	}
}

func (p *fakeDeviceColorPool) handleRef(c coccache.DeviceColor) (*int32, bool) {
	id, ok := c.Handle().(int64)
	if !ok {
		return nil, false
	}
	ref, ok := p.refs[id]
	return ref, ok
}

// pageContext is the minimal coccache.PageContext riplab's simulator
// supplies: one fakeDeviceColorPool per simulated page.
type pageContext struct {
	dcc *fakeDeviceColorPool
}

func (p *pageContext) DeviceColorContext() coccache.DeviceColorContext { return p.dcc }

// chainState is the mutable graphics-state slice coccache.ChainContext
// exposes -- current opacity/spot-flags/black-type/device-color for one
// simulated chain invocation.
type chainState struct {
	dcc         *fakeDeviceColorPool
	opacity     coccache.Opacity
	spotFlags   byte
	blackType   uint8
	deviceColor coccache.DeviceColor
}

func (c *chainState) DeviceColorContext() coccache.DeviceColorContext { return c.dcc }
func (c *chainState) CurrentOpacity() coccache.Opacity                { return c.opacity }
func (c *chainState) CurrentSpotFlags() byte                          { return c.spotFlags }
func (c *chainState) CurrentBlackType() uint8                         { return c.blackType }
func (c *chainState) CurrentDeviceColor() coccache.DeviceColor        { return c.deviceColor }
func (c *chainState) SetCurrentDeviceColor(d coccache.DeviceColor)    { c.deviceColor = d }
func (c *chainState) SetCurrentSpotFlags(f byte)                      { c.spotFlags = f }
func (c *chainState) SetCurrentBlackType(b uint8)                     { c.blackType = b }

// syntheticChain is the coccache.ChainDescriptor riplab drives through
// Lookup/Insert: a fixed input colorant vector plus the live chainState.
type syntheticChain struct {
	class      *classDescriptor
	input      []float32
	state      *chainState
	finalOut   []float32
}

func (c *syntheticChain) Class() coccache.ChainClassDescriptor { return c.class }
func (c *syntheticChain) InputColorants() []float32            { return c.input }
func (c *syntheticChain) InputColorantCount() int               { return len(c.input) }
func (c *syntheticChain) OverprintProcess() uint32              { return 0 }
func (c *syntheticChain) InputBlackType() uint8                 { return c.state.blackType }
func (c *syntheticChain) Context() coccache.ChainContext        { return c.state }
func (c *syntheticChain) FinalLinkOutput() []float32            { return c.finalOut }

// runChain simulates executing the chain end-to-end on a cache miss,
// producing a fresh device color from the pool (StyleDLColor) or
// final-link output drawn from the page's seeded RNG, so repeated runs are
// reproducible.
func runChain(rng *rand.Rand, chain *syntheticChain, pool *fakeDeviceColorPool, style coccache.EntryStyle) {
	switch style {
	case coccache.StyleDLColor:
		chain.state.DeviceColorContext().Release(chain.state.deviceColor)
		chain.state.deviceColor = pool.alloc()
	default:
		for i := range chain.finalOut {
			chain.finalOut[i] = rng.Float32()
		}
	}
}
