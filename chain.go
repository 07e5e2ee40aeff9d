package coccache

// ChainLink describes one stage of a color chain for the purpose of
// deriving its chain-class key (see CacheState.HeadCreate). Disabled
// mirrors the original's magic negative idcount values (COLCACHE_DISABLE /
// COLCACHE_NYI): a link that reports Disabled aborts head creation and
// leaves the chain permanently uncached.
type ChainLink struct {
	LinkType CLID
	IDs      []CLID
	Disabled bool
}

// ChainClassDescriptor is the structural identity of a chain: its input
// color space, colorant count, and the ordered list of links including the
// terminating one. Two chains with equal class descriptors share a
// CacheHead.
type ChainClassDescriptor interface {
	InputColorSpace() CLID
	InputColorantCount() int
	// Links yields every link in the chain, in order, including the
	// terminating link. The terminating link additionally contributes its
	// colorant indices to the chain-class key (see TerminatingColorants).
	Links() []ChainLink
	// TerminatingColorants returns the colorant indices of the terminating
	// link, folded into the chain-class key and the directory hash.
	TerminatingColorants() []CLID
}

// DeviceColor is an opaque, reference-counted handle to a fully-resolved
// output color in the display list's color pool. The cache never inspects
// its contents; it only reserves, copies, and releases it through
// DeviceColorContext.
type DeviceColor struct {
	// handle is collaborator-defined; the cache treats it as opaque.
	handle interface{}
}

// IsZero reports whether this handle is the unset zero value (no color
// reserved).
func (d DeviceColor) IsZero() bool { return d.handle == nil }

// NewDeviceColor wraps a collaborator-defined handle as a DeviceColor.
// Only the collaborator that owns the color pool should call this; the
// cache itself only ever copies handles it is given.
func NewDeviceColor(handle interface{}) DeviceColor { return DeviceColor{handle: handle} }

// Handle returns the collaborator-defined handle, for a DeviceColorContext
// implementation to interpret.
func (d DeviceColor) Handle() interface{} { return d.handle }

// DeviceColorContext is the narrow slice of the display-list color
// allocator the cache consumes for StyleDLColor entries.
type DeviceColorContext interface {
	// Reserve increments c's reference count.
	Reserve(c DeviceColor)
	// Copy makes *dst an additional reference to src, returning false on
	// allocation failure (in which case *dst is left unmodified).
	Copy(dst *DeviceColor, src DeviceColor) bool
	// Release decrements c's reference count, freeing it at zero.
	Release(c DeviceColor)
}

// ChainContext is the live graphics-state context a chain carries: the
// device-color allocator, and the current opacity/spot-flags/black-type/
// device-color the chain is operating with.
type ChainContext interface {
	DeviceColorContext() DeviceColorContext
	CurrentOpacity() Opacity
	CurrentSpotFlags() byte
	CurrentBlackType() uint8
	CurrentDeviceColor() DeviceColor
	SetCurrentDeviceColor(DeviceColor)
	SetCurrentSpotFlags(byte)
	SetCurrentBlackType(uint8)
}

// ChainDescriptor is the input to Lookup/Insert/HeadCreate: one color
// chain instance, its current input colorants, and its live context.
type ChainDescriptor interface {
	// Class is consulted only by HeadCreate, to derive the chain-class key.
	Class() ChainClassDescriptor
	// InputColorants is the chain's current input color vector, length
	// InputColorantCount().
	InputColorants() []float32
	InputColorantCount() int
	// OverprintProcess is non-zero for chains deliberately excluded from
	// the cache (CMYK overprint-process keys).
	OverprintProcess() uint32
	// InputBlackType is the black type presented to the chain at lookup
	// time; for StyleDLColor entries this is a secondary key.
	InputBlackType() uint8
	Context() ChainContext
	// FinalLinkOutput exposes the terminating link's input slot for
	// StyleFinalLink chains: Lookup writes a hit's outputs here, Insert
	// reads the chain's freshly computed outputs from here. Length
	// TerminatingColorants-derived n_outComps.
	FinalLinkOutput() []float32
}

// PageContext supplies a CacheHead the externally-owned resources it
// needs without the cache owning them: the device-color context for
// StyleDLColor styles. One PageContext is shared by every head belonging
// to the same page/process scope.
type PageContext interface {
	DeviceColorContext() DeviceColorContext
}

// ImageLUT is an externally-owned lookup table keyed by chain class; the
// cache holds only a non-owning back-reference to it, cleared on
// reset(release=false).
type ImageLUT interface{}

// LowMemOffer is returned by a LowMemHandler's Solicit when it has
// something purgeable to offer the memory manager.
type LowMemOffer struct {
	PoolName  string
	OfferSize uint64
	OfferCost float64
}

// LowMemHandler is the two-method cooperative low-memory callback contract
// (spec §6, §4.C.3): Solicit estimates what could be purged without
// mutating anything; Release actually performs the purge or reset.
type LowMemHandler interface {
	// Solicit returns nil if nothing is purgeable.
	Solicit() *LowMemOffer
	// Release purges in response to a prior Solicit offer. betweenOperators
	// indicates we're at a safe control point (full reset is safe);
	// otherwise a partial purge is used.
	Release(offer *LowMemOffer, betweenOperators bool) bool
}

// LowMemRegistry is the process-wide memory manager's handler registry.
type LowMemRegistry interface {
	Register(handler LowMemHandler) bool
	Deregister(handler LowMemHandler)
}
