package coccache

// Fakes backing the core package's tests: a minimal ChainClassDescriptor /
// ChainDescriptor / ChainContext / DeviceColorContext implementation, kept
// deliberately small since the tests only exercise CacheState/CacheHead, not
// a real chain-execution pipeline.

type fakeClass struct {
	colorSpace CLID
	nIn        int
	links      []ChainLink
	termIDs    []CLID
}

func (c *fakeClass) InputColorSpace() CLID       { return c.colorSpace }
func (c *fakeClass) InputColorantCount() int      { return c.nIn }
func (c *fakeClass) Links() []ChainLink           { return c.links }
func (c *fakeClass) TerminatingColorants() []CLID { return c.termIDs }

func finalLinkClass(nIn int, termIDs []CLID) *fakeClass {
	return &fakeClass{
		colorSpace: 1,
		nIn:        nIn,
		links:      []ChainLink{{LinkType: 1, IDs: []CLID{2, 3}}},
		termIDs:    termIDs,
	}
}

func dlColorClass(nIn int) *fakeClass {
	return &fakeClass{
		colorSpace: 1,
		nIn:        nIn,
		links:      []ChainLink{{LinkType: 1, IDs: []CLID{2, 3}}},
	}
}

// fakeDeviceColorPool is a trivial refcounting DeviceColorContext: each
// reserved handle is an *int holding its refcount.
type fakeDeviceColorPool struct {
	refs map[*int]int
}

func newFakeDeviceColorPool() *fakeDeviceColorPool {
	return &fakeDeviceColorPool{refs: make(map[*int]int)}
}

func (p *fakeDeviceColorPool) alloc() DeviceColor {
	n := new(int)
	p.refs[n] = 1
	return NewDeviceColor(n)
}

func (p *fakeDeviceColorPool) Reserve(c DeviceColor) {
	if c.IsZero() {
		return
	}
	key := c.Handle().(*int)
	p.refs[key]++
}

func (p *fakeDeviceColorPool) Copy(dst *DeviceColor, src DeviceColor) bool {
	if src.IsZero() {
		*dst = DeviceColor{}
		return true
	}
	key := src.Handle().(*int)
	p.refs[key]++
	*dst = src
	return true
}

func (p *fakeDeviceColorPool) Release(c DeviceColor) {
	if c.IsZero() {
		return
	}
	key := c.Handle().(*int)
	p.refs[key]--
	if p.refs[key] <= 0 {
		delete(p.refs, key)
	}
}

func (p *fakeDeviceColorPool) liveCount() int { return len(p.refs) }

type fakePageContext struct {
	dcc *fakeDeviceColorPool
}

func (p *fakePageContext) DeviceColorContext() DeviceColorContext { return p.dcc }

type fakeChainContext struct {
	dcc         *fakeDeviceColorPool
	opacity     Opacity
	spotFlags   byte
	blackType   uint8
	deviceColor DeviceColor
}

func (c *fakeChainContext) DeviceColorContext() DeviceColorContext { return c.dcc }
func (c *fakeChainContext) CurrentOpacity() Opacity                { return c.opacity }
func (c *fakeChainContext) CurrentSpotFlags() byte                 { return c.spotFlags }
func (c *fakeChainContext) CurrentBlackType() uint8                { return c.blackType }
func (c *fakeChainContext) CurrentDeviceColor() DeviceColor         { return c.deviceColor }
func (c *fakeChainContext) SetCurrentDeviceColor(d DeviceColor)     { c.deviceColor = d }
func (c *fakeChainContext) SetCurrentSpotFlags(f byte)              { c.spotFlags = f }
func (c *fakeChainContext) SetCurrentBlackType(b uint8)             { c.blackType = b }

// fakeChain is a ChainDescriptor usable for both EntryStyle payloads: when
// finalOut is non-nil the head is treated as StyleFinalLink, otherwise
// StyleDLColor.
type fakeChain struct {
	class       ChainClassDescriptor
	input       []float32
	overprint   uint32
	blackType   uint8
	ctx         *fakeChainContext
	finalOut    []float32
}

func (c *fakeChain) Class() ChainClassDescriptor { return c.class }
func (c *fakeChain) InputColorants() []float32   { return c.input }
func (c *fakeChain) InputColorantCount() int      { return len(c.input) }
func (c *fakeChain) OverprintProcess() uint32     { return c.overprint }
func (c *fakeChain) InputBlackType() uint8        { return c.blackType }
func (c *fakeChain) Context() ChainContext        { return c.ctx }
func (c *fakeChain) FinalLinkOutput() []float32   { return c.finalOut }

func newFinalLinkChain(class ChainClassDescriptor, input []float32, nOut int) *fakeChain {
	return &fakeChain{
		class:    class,
		input:    input,
		ctx:      &fakeChainContext{dcc: newFakeDeviceColorPool()},
		finalOut: make([]float32, nOut),
	}
}

func newDLColorChain(class ChainClassDescriptor, input []float32, dcc *fakeDeviceColorPool) *fakeChain {
	dc := dcc.alloc()
	return &fakeChain{
		class: class,
		input: input,
		ctx:   &fakeChainContext{dcc: dcc, deviceColor: dc},
	}
}

// alwaysFailAllocator always refuses, for first-allocation-failure paths.
type alwaysFailAllocator struct{}

func (alwaysFailAllocator) TryAlloc() bool { return false }

// failAfterNAllocator succeeds its first n TryAlloc calls, then refuses
// every call after -- used when the allocator must let CacheState's own
// constructor-time allocation succeed before a later allocation is made to
// fail deterministically.
type failAfterNAllocator struct {
	n     int
	count int
}

func (a *failAfterNAllocator) TryAlloc() bool {
	a.count++
	return a.count <= a.n
}
