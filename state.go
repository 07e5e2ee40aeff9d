package coccache

import (
	"go.uber.org/zap"

	"github.com/pkg/errors"
)

// headHashReuseLimit bounds how many heads head_create may coexist with in
// one directory bucket before preferring to reuse/reclaim one of them
// (spec §4.E); also the scan depth of the depth-reuse heuristic when
// Config.ReuseDepletedHeads is enabled.
const headHashReuseLimit = 5

// minReprieveLevel is the purge heuristic's hit-density cutoff: a head
// with chits/population below this is considered cold and is cleared
// under memory pressure (spec §4.C.2). Kept as integer division per the
// original -- see DESIGN.md's Open Question resolution.
const minReprieveLevel = 5

// CacheState is the process/page-wide chain-class directory: 256 buckets
// of CacheHead lists, reset/purge/solicit-release, and generation-number
// bookkeeping. One CacheState belongs to one page/process scope; see
// SPEC_FULL.md §5 for the one-per-goroutine rule when used concurrently.
type CacheState struct {
	cfg Config

	directory [256]*CacheHead

	totalCount           int
	purgedCount          int
	nextGenerationNumber uint32

	// page backs Solicit/Release's LowMemHandler implementation, since that
	// interface carries no PageContext parameter of its own. Set via
	// SetPageContext before registering with a LowMemRegistry.
	page PageContext
}

// SetPageContext installs the PageContext Release uses to reach the
// display-list color allocator for StyleDLColor output release.
func (s *CacheState) SetPageContext(page PageContext) { s.page = page }

// NewCacheState constructs an empty directory. This is the sole
// constructor-time error path in the whole cache (spec §7): every other
// allocation failure is reported as a bool, never an error.
func NewCacheState(cfg Config) (*CacheState, error) {
	if !cfg.Allocator.TryAlloc() {
		return nil, errors.New("coccache: allocation failed constructing CacheState")
	}
	return &CacheState{cfg: cfg}, nil
}

// Snapshot is a point-in-time read of the directory's aggregate counters,
// the payload internal/telemetry publishes and a caller may hand to a
// MetricsRecorder.
// It never carries cache content (no color, device handle, or chain-class
// key), only the statistics spec §3 already tracks.
type Snapshot struct {
	TotalCount  int
	PurgedCount int
	Population  int
	Chits       int
	Clookups    int
}

// Snapshot aggregates every live head's counters into one Snapshot.
func (s *CacheState) Snapshot() Snapshot {
	var snap Snapshot
	snap.TotalCount = s.totalCount
	snap.PurgedCount = s.purgedCount
	for _, head := range s.directory {
		for h := head; h != nil; h = h.next {
			population, chits, clookups := h.populationAndHits()
			snap.Population += population
			snap.Chits += chits
			snap.Clookups += clookups
		}
	}
	return snap
}

// BucketHistogram returns, across every head in every directory bucket,
// how many heads have each observed maximum hash-chain depth -- the
// original's coc_trace_headhash under TRACE_CACHE. It is computed on every
// call whatever cfg.TraceCache says.
func (s *CacheState) BucketHistogram() map[int]int {
	hist := make(map[int]int)
	for _, head := range s.directory {
		for h := head; h != nil; h = h.next {
			maxDepth := 0
			for idx := range h.hashtable {
				if d := bucketDepth(h.hashtable, idx); d > maxDepth {
					maxDepth = d
				}
			}
			hist[maxDepth]++
		}
	}
	return hist
}

// directoryIndex folds a chain-class key into [0, 256) per spec §4.E:
// key = (key<<5)|next for every CLID in turn, then key += key>>16;
// key += key>>8; key &= 0xFF.
func directoryIndex(class []CLID) uint8 {
	var key uint32
	for _, c := range class {
		key = (key << 5) | uint32(c)
	}
	key += key >> 16
	key += key >> 8
	return uint8(key & 0xFF)
}

// buildChainClassKey flattens a chain's class descriptor into the CLID
// vector spec §4.E derives the directory hash from:
// [iColorSpace, n_iColorants, {linkType, idcount, ids...} per link,
// {terminating colorants}]. ok is false if any link reports the magic
// "disable" sentinel, or the flattened key would exceed 256 CLIDs.
func buildChainClassKey(class ChainClassDescriptor) (key []CLID, ok bool) {
	key = append(key, class.InputColorSpace(), CLID(class.InputColorantCount()))
	for _, link := range class.Links() {
		if link.Disabled {
			return nil, false
		}
		key = append(key, link.LinkType, CLID(len(link.IDs)))
		key = append(key, link.IDs...)
	}
	key = append(key, class.TerminatingColorants()...)
	if len(key) > 256 {
		return nil, false
	}
	return key, true
}

// classKeyEqual reports whether two flattened chain-class keys describe
// the same chain class (directory-hash collisions still need this full
// compare, since distinct classes can share a bucket).
func classKeyEqual(a, b []CLID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HeadCreate realizes head_create (spec §4.B.1). firstUse is the caller's
// own tracking of whether this is the chain's first invocation: the
// original infers this from chain.head == NULL being reached for what the
// caller already knows is a fresh chain; here it is passed explicitly
// rather than inferred, since CacheState has no way to
// observe a chain's usage history before a head exists for it. On the
// first use, head_create deliberately declines (P6) as a heuristic
// single-shot optimisation.
//
// nOut is the terminating link's output arity; ignored for StyleDLColor.
func (s *CacheState) HeadCreate(chain ChainClassDescriptor, firstUse bool, style EntryStyle, nOut int) (*CacheHead, bool) {
	if firstUse {
		return nil, false
	}
	key, ok := buildChainClassKey(chain)
	if !ok {
		return nil, false
	}
	assertWith(s.cfg.Assertions, validTerminatingStyle(chain, style),
		"terminating link type does not match requested entry style")

	idx := directoryIndex(key)
	var reuseCandidate *CacheHead
	reuseScan := 0
	for h := s.directory[idx]; h != nil; h = h.next {
		if classKeyEqual(h.class, key) {
			h.refCnt++
			return h, true
		}
		if s.cfg.ReuseDepletedHeads && reuseCandidate == nil && reuseScan < headHashReuseLimit && h.freeable() {
			reuseCandidate = h
		}
		reuseScan++
	}

	nIn := chain.InputColorantCount()
	if reuseCandidate != nil {
		if !reuseCandidate.reinit(s.cfg, key, style, nIn, nOut) {
			return nil, false
		}
		reuseCandidate.generationNumber = s.nextGenerationNumber
		s.nextGenerationNumber++
		return reuseCandidate, true
	}

	h, ok := newCacheHead(s.cfg, key, style, nIn, nOut)
	if !ok {
		s.cfg.Logger.Debug("coccache: head_create allocation failed",
			zap.Int("directoryIndex", int(idx)))
		return nil, false
	}
	h.generationNumber = s.nextGenerationNumber
	s.nextGenerationNumber++
	h.next = s.directory[idx]
	s.directory[idx] = h
	s.totalCount++
	return h, true
}

// validTerminatingStyle is the per-style terminating-link validation the
// original asserts in head_create: a class with no links fails; a
// StyleFinalLink head's terminating link must carry ids or the class must
// list terminating colorants. StyleDLColor classes are not checked further.
func validTerminatingStyle(chain ChainClassDescriptor, style EntryStyle) bool {
	links := chain.Links()
	if len(links) == 0 {
		return false
	}
	terminating := links[len(links)-1]
	switch style {
	case StyleFinalLink:
		return len(terminating.IDs) > 0 || len(chain.TerminatingColorants()) > 0
	default:
		return true
	}
}

// GenerationNumber returns the stable per-head id the original's
// coc_generationNumber exposes to external callers (image-LUT consumers),
// lazily creating the head via HeadCreate if it does not yet exist. ok is
// false if no head exists and none could be created (first use, or
// allocation failure).
func (s *CacheState) GenerationNumber(chain ChainDescriptor, firstUse bool, head *CacheHead) (uint32, *CacheHead, bool) {
	if head != nil {
		return head.generationNumber, head, true
	}
	nOut := len(chain.FinalLinkOutput())
	style := StyleDLColor
	if nOut > 0 {
		style = StyleFinalLink
	}
	h, ok := s.HeadCreate(chain.Class(), firstUse, style, nOut)
	if !ok {
		return 0, nil, false
	}
	return h.generationNumber, h, true
}

// toBitInput reinterprets a float32 color vector as bit-pattern uint32s
// for bit-exact hashing and comparison (spec §4.B.2).
func toBitInput(dst []uint32, src []float32) []uint32 {
	if cap(dst) < len(src) {
		dst = make([]uint32, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = floatBits(v)
	}
	return dst
}

// Lookup realizes lookup (spec §4.B.2) against the given head, which must
// already exist (the caller obtains it via HeadCreate on the chain's
// second use and holds it directly thereafter). Returns false on miss,
// including the deliberate miss for overprint-process chains and for a
// purged (hashtable == nil) head.
func (s *CacheState) Lookup(head *CacheHead, chain ChainDescriptor) bool {
	if chain.OverprintProcess() != 0 {
		return false
	}
	var scratch [32]uint32
	input := toBitInput(scratch[:0], chain.InputColorants())

	switch head.style {
	case StyleDLColor:
		ctx := chain.Context()
		opacity := opacityBits(ctx.CurrentOpacity())
		e, hit := head.lookupDLColor(input, opacity, chain.InputBlackType())
		if !hit {
			return false
		}
		dcc := ctx.DeviceColorContext()
		dcc.Release(ctx.CurrentDeviceColor())
		var next DeviceColor
		if !dcc.Copy(&next, e.deviceColor) {
			return false
		}
		ctx.SetCurrentDeviceColor(next)
		ctx.SetCurrentSpotFlags(e.spotFlags)
		ctx.SetCurrentBlackType(e.blackType.Insert())
		return true
	default: // StyleFinalLink
		e, hit := head.lookupFinalLink(input)
		if !hit {
			return false
		}
		out := chain.FinalLinkOutput()
		for i := range out {
			out[i] = float32frombits(e.output[i])
		}
		return true
	}
}

// Insert realizes insert (spec §4.B.3) against head for chain, whose
// outputs are assumed already computed (end-to-end chain execution on
// miss happens entirely outside this package). No-op (returns false) for
// overprint-process chains, a purged head that fails to reallocate its
// tables, or an allocation failure while growing the slab chain. The
// protected-allocation barrier itself is scoped inside
// insertDLColor/insertFinalLink's call to reserveSlot, around the single
// newDataTable call a slab-growth allocation crosses -- not around this
// whole method, since the bucket-list manipulation on either side of that
// allocation must keep reading head.hashtable.
func (s *CacheState) Insert(head *CacheHead, chain ChainDescriptor) bool {
	if chain.OverprintProcess() != 0 {
		return false
	}
	if head.purged() {
		// A purged head (hashtable == nil) is already immune to a
		// re-entrant purge reaching it, so recreating its tables needs no
		// protected-allocation barrier (spec §4.D: "a head not yet linked
		// into the directory needs no barrier, since purge cannot reach
		// it" -- the same reasoning applies to an already-purged head).
		dt, ok := newDataTable(s.cfg, head.style, head.nIn, head.nOut)
		if !ok {
			return false
		}
		head.hashtable = make([]*CacheEntry, s.cfg.hashtableSize())
		head.tables = dt
		s.purgedCount--
	}

	var scratch [32]uint32
	input := toBitInput(scratch[:0], chain.InputColorants())

	switch head.style {
	case StyleDLColor:
		ctx := chain.Context()
		opacity := opacityBits(ctx.CurrentOpacity())
		blackType := PackBlackType(chain.InputBlackType(), ctx.CurrentBlackType())
		dc := ctx.CurrentDeviceColor()
		ctx.DeviceColorContext().Reserve(dc)
		ok := head.insertDLColor(s, input, opacity, blackType, dc, ctx.CurrentSpotFlags())
		if !ok {
			ctx.DeviceColorContext().Release(dc)
		}
		return ok
	default: // StyleFinalLink
		var outScratch [32]uint32
		output := toBitInput(outScratch[:0], chain.FinalLinkOutput())
		return head.insertFinalLink(s, input, output)
	}
}

// Reset realizes reset(release_outputs) (spec §4.C.1): walks all 256
// directory buckets, clearing every live head (optionally releasing
// StyleDLColor outputs), nulling image-LUT back-references when
// releaseOutputs is false, and freeing every head whose refCnt has
// already dropped to zero.
func (s *CacheState) Reset(page PageContext, releaseOutputs bool) {
	s.walkAndMaybeClear(page, releaseOutputs, func(*CacheHead) bool { return true })
}

// Purge realizes purge (spec §4.C.2): the same walk as Reset with
// release_outputs = true, but only clearing heads that pass the purge
// predicate. Returns true if anything was freed or newly purged.
func (s *CacheState) Purge(page PageContext) bool {
	freedOrPurged := false
	before := s.totalCount
	s.walkAndMaybeClear(page, true, func(h *CacheHead) bool {
		purge := purgePredicate(h)
		if purge {
			freedOrPurged = true
		}
		return purge
	})
	return freedOrPurged || s.totalCount != before
}

// purgePredicate is the purge heuristic of spec §4.C.2: a head is
// cleared if chits == 0, or refCnt == 0, or its hit density falls below
// minReprieveLevel. Integer division is intentional (see DESIGN.md).
func purgePredicate(h *CacheHead) bool {
	if h.chits == 0 || h.refCnt == 0 {
		return true
	}
	return h.chits/h.population < minReprieveLevel
}

// walkAndMaybeClear is the shared traversal Reset and Purge both run:
// for every live (unpurged) head that shouldClear approves, clear it
// (releasing outputs per releaseOutputs); then, regardless, null the
// image-LUT reference when releaseOutputs is false and free any head
// whose refCnt has reached zero.
func (s *CacheState) walkAndMaybeClear(page PageContext, releaseOutputs bool, shouldClear func(*CacheHead) bool) {
	var dcc DeviceColorContext
	if page != nil {
		dcc = page.DeviceColorContext()
	}
	for idx := range s.directory {
		var prev *CacheHead
		h := s.directory[idx]
		for h != nil {
			next := h.next
			if !h.purged() && shouldClear(h) {
				if releaseOutputs && h.style == StyleDLColor && dcc != nil {
					for bi := range h.hashtable {
						for e := h.hashtable[bi]; e != nil; e = e.next {
							dcc.Release(e.deviceColor)
						}
					}
				}
				h.clear()
				s.purgedCount++
			}
			if !releaseOutputs {
				h.imlut = nil
			}
			if h.refCnt == 0 {
				if prev == nil {
					s.directory[idx] = next
				} else {
					prev.next = next
				}
				if h.purged() {
					s.purgedCount--
				}
				s.totalCount--
				h = next
				continue
			}
			prev = h
			h = next
		}
	}
}

// pointerSizeBytes estimates a hashtable slot's cost for Solicit's byte
// estimate -- the original's sizeof(slot-pointer).
const pointerSizeBytes = 8

// Solicit implements LowMemHandler: it scans the directory once, without
// mutating anything, counting heads that would pass the purge predicate
// and summing their hashtable byte cost. Returns nil if nothing is
// purgeable.
func (s *CacheState) Solicit() *LowMemOffer {
	purgeable := 0
	var bytes uint64
	for _, head := range s.directory {
		for h := head; h != nil; h = h.next {
			if !h.purged() && purgePredicate(h) {
				purgeable++
				bytes += uint64(len(h.hashtable)) * pointerSizeBytes
			}
		}
	}
	if purgeable == 0 {
		return nil
	}
	return &LowMemOffer{
		PoolName:  "coccache",
		OfferSize: bytes,
		OfferCost: float64(purgeable),
	}
}

// Release implements LowMemHandler: at a safe control point (between
// operators) it runs a full Reset(release=true); otherwise it runs the
// narrower Purge. Per spec §4.C.3 the caller must not mutate the cache
// between a Solicit and its matching Release.
func (s *CacheState) Release(offer *LowMemOffer, betweenOperators bool) bool {
	if betweenOperators {
		before := s.purgedCount
		s.Reset(s.page, true)
		return s.purgedCount != before || s.totalCount == 0
	}
	return s.Purge(s.page)
}
