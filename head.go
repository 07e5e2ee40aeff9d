package coccache

// maxHashDepth bounds every hashtable bucket's chain length (spec §4.B):
// once a bucket would grow past this, the tail (oldest, least-recently-used)
// entry is recycled in place instead of allocating a new one.
const maxHashDepth = 5

// CacheHead is the per-chain-class cache: a hashtable keyed by input color
// (plus opacity/black-type for StyleDLColor), backed by a chain of
// dataTables it owns. refCnt tracks how many live chains reference this
// head's chain class; a head only becomes eligible for freeing once
// refCnt drops to zero and it has already been purged (hashtable == nil).
type CacheHead struct {
	next  *CacheHead // directory bucket chain
	style EntryStyle
	nIn   int
	nOut  int // only meaningful for StyleFinalLink

	class []CLID // chain-class key, immutable for the head's lifetime (invariant 7)

	hashtable []*CacheEntry // nil when purged
	tables    *dataTable    // owned dataTable chain, for allocation and freeing

	refCnt int

	population int // live entries; drives the purge heuristic's chits/population term
	chits      int // cache hits since last reset, drives the purge heuristic
	clookups   int // lookups since last reset

	generationNumber uint32
	imlut            ImageLUT // weak (non-owning) back-reference; cleared on reset(release=false)
}

// ImageLUT returns the head's image-LUT back-reference (nil if none is
// set). It is a plain accessor on an existing head and never creates one.
func (h *CacheHead) ImageLUT() ImageLUT { return h.imlut }

// SetImageLUT installs a non-owning image-LUT back-reference, the only
// external mutator besides reset(release=false).
func (h *CacheHead) SetImageLUT(lut ImageLUT) { h.imlut = lut }

// GenerationNumber returns the stable id assigned to this head when it
// was created.
func (h *CacheHead) GenerationNumber() uint32 { return h.generationNumber }

// Style reports which entry payload shape this head holds.
func (h *CacheHead) Style() EntryStyle { return h.style }

// RefCount reports the number of chains currently referencing this head.
func (h *CacheHead) RefCount() int { return h.refCnt }

// DepthHistogram returns, for each observed bucket chain length, how many
// buckets currently have that length -- the original's
// coc_trace_cache_population under TRACE_CACHE. It is computed on every
// call whatever Config.TraceCache says; a purged head yields an empty map.
func (h *CacheHead) DepthHistogram() map[int]int {
	hist := make(map[int]int)
	for idx := range h.hashtable {
		hist[bucketDepth(h.hashtable, idx)]++
	}
	return hist
}

// newCacheHead allocates a head and its first dataTable. Returns false on
// allocation failure, in which case the chain falls back to uncached
// execution and no partial state is left behind.
func newCacheHead(cfg Config, class []CLID, style EntryStyle, nIn, nOut int) (*CacheHead, bool) {
	if !cfg.Allocator.TryAlloc() {
		return nil, false
	}
	dt, ok := newDataTable(cfg, style, nIn, nOut)
	if !ok {
		return nil, false
	}
	h := &CacheHead{
		class:     class,
		style:     style,
		nIn:       nIn,
		nOut:      nOut,
		hashtable: make([]*CacheEntry, cfg.hashtableSize()),
		tables:    dt,
		refCnt:    1,
	}
	return h, true
}

// reinit repurposes an already-allocated, depleted CacheHead (refCnt == 0,
// already purged) for a new chain class, per the depth-reuse heuristic
// (Config.ReuseDepletedHeads). Returns false on allocation failure, in
// which case h is left untouched and still depleted.
func (h *CacheHead) reinit(cfg Config, class []CLID, style EntryStyle, nIn, nOut int) bool {
	dt, ok := newDataTable(cfg, style, nIn, nOut)
	if !ok {
		return false
	}
	h.class = class
	h.style = style
	h.nIn = nIn
	h.nOut = nOut
	h.hashtable = make([]*CacheEntry, cfg.hashtableSize())
	h.tables = dt
	h.refCnt = 1
	return true
}

// inputHash derives the per-head hashtable bucket for an input color
// vector plus opacity, per spec §4.B.2: sum((value[i] as u32)<<i) +
// opacity, folded down by two shift-adds and masked to hashtable_size - 1
// (gs_cache.c:1359), the same mask for both the 1201- and 2048-bucket
// presets.
func inputHash(tableSize int, input []uint32, opacity uint32) int {
	h := opacity
	for i, v := range input {
		h += v << uint(i%32)
	}
	h += h >> 16
	h += h >> 8
	return int(h) & (tableSize - 1)
}

// unlinkEntry removes entry e, whose predecessor in the bucket is prev (nil
// if e is the bucket head), from bucket.
func unlinkEntry(bucket *[]*CacheEntry, idx int, prev, e *CacheEntry) {
	if prev == nil {
		(*bucket)[idx] = e.next
	} else {
		prev.next = e.next
	}
}

// promoteToMRU relinks e at the head of its bucket. Called on every cache
// hit, before the hit is reported to the caller, per spec §4.B's MRU
// discipline.
func promoteToMRU(bucket []*CacheEntry, idx int, prev, e *CacheEntry) {
	if prev == nil {
		return // already at head
	}
	prev.next = e.next
	e.next = bucket[idx]
	bucket[idx] = e
}

// lookupDLColor searches h for a StyleDLColor hit, promoting it to MRU on
// success.
//
// The original threads the hash computed during lookup through to a
// subsequent insert on miss, to avoid recomputing it. This Go rendition
// recomputes it instead: the hash is a sum over
// an input vector whose arity is small (a handful of colorants), so the
// recomputation is not observable cost, and dropping the threaded
// parameter keeps Lookup/Insert's signatures free of a "reuse this magic
// number from the last call" contract.
func (h *CacheHead) lookupDLColor(input []uint32, opacity uint32, lookupBlackType uint8) (*CacheEntry, bool) {
	h.clookups++
	if h.hashtable == nil {
		return nil, false
	}
	idx := inputHash(len(h.hashtable), input, opacity)
	var prev *CacheEntry
	for e := h.hashtable[idx]; e != nil; e = e.next {
		if e.matchesDLColor(input, opacity, lookupBlackType) {
			promoteToMRU(h.hashtable, idx, prev, e)
			h.chits++
			return e, true
		}
		prev = e
	}
	return nil, false
}

// lookupFinalLink searches h for a StyleFinalLink hit, promoting it to MRU
// on success.
func (h *CacheHead) lookupFinalLink(input []uint32) (*CacheEntry, bool) {
	h.clookups++
	if h.hashtable == nil {
		return nil, false
	}
	idx := inputHash(len(h.hashtable), input, 0)
	var prev *CacheEntry
	for e := h.hashtable[idx]; e != nil; e = e.next {
		if e.matchesFinalLink(input) {
			promoteToMRU(h.hashtable, idx, prev, e)
			h.chits++
			return e, true
		}
		prev = e
	}
	return nil, false
}

// bucketDepth counts the entries currently chained at idx.
func bucketDepth(bucket []*CacheEntry, idx int) int {
	n := 0
	for e := bucket[idx]; e != nil; e = e.next {
		n++
	}
	return n
}

// reserveSlot returns an entry ready to be (re)populated for insertion at
// bucket idx: either a freshly allocated arena slot (and the bucket grows
// by one), or -- once the bucket is already at maxHashDepth -- the bucket's
// tail entry recycled in place (length-bounded chains, spec §4.B). ok is
// false only on allocation failure with no existing recyclable entry.
//
// The slab-growth allocation is the only allocation point this method
// crosses after h is already linked into state's directory, so the
// allocation-safety barrier (spec §4.D, gs_cache.c:1561-1564) is scoped
// tightly around just that one newDataTable call -- never around the
// surrounding hashtable/bucket-list manipulation, which must keep reading
// h.hashtable throughout.
func (h *CacheHead) reserveSlot(state *CacheState, idx int) (e *CacheEntry, isNew bool, ok bool) {
	depth := bucketDepth(h.hashtable, idx)
	if depth < maxHashDepth {
		if h.tables.full() {
			var dt *dataTable
			var allocated bool
			withProtectedAlloc(state, h, func() bool {
				dt, allocated = newDataTable(state.cfg, h.style, h.nIn, h.nOut)
				return allocated
			})
			if !allocated {
				if depth == 0 {
					return nil, false, false
				}
				return h.recycleTail(idx), false, true
			}
			dt.next = h.tables
			h.tables = dt
		}
		return h.tables.alloc(), true, true
	}
	return h.recycleTail(idx), false, true
}

// recycleTail unlinks and returns the least-recently-used (tail) entry of
// bucket idx, to be repopulated by the caller. The bucket is left with one
// fewer link until the caller relinks the recycled entry at the head.
func (h *CacheHead) recycleTail(idx int) *CacheEntry {
	var prev, e *CacheEntry
	e = h.hashtable[idx]
	for e.next != nil {
		prev = e
		e = e.next
	}
	unlinkEntry(&h.hashtable, idx, prev, e)
	return e
}

// insertDLColor inserts or recycles an entry for input/opacity/blackType,
// populating its StyleDLColor payload, and links it at the bucket head (a
// fresh insert is already MRU). Returns false on allocation failure.
func (h *CacheHead) insertDLColor(state *CacheState, input []uint32, opacity uint32, blackType BlackType, dc DeviceColor, spotFlags byte) bool {
	idx := inputHash(len(h.hashtable), input, opacity)
	e, isNew, ok := h.reserveSlot(state, idx)
	if !ok {
		return false
	}
	if isNew {
		copy(e.input, input)
	} else {
		for i := range input {
			e.input[i] = input[i]
		}
	}
	e.deviceColor = dc
	e.spotFlags = spotFlags
	e.blackType = blackType
	e.opacity = Opacity(float32frombits(opacity))
	e.next = h.hashtable[idx]
	h.hashtable[idx] = e
	if isNew {
		h.population++
	}
	return true
}

// insertFinalLink inserts or recycles an entry for input, populating its
// StyleFinalLink payload.
func (h *CacheHead) insertFinalLink(state *CacheState, input []uint32, output []uint32) bool {
	idx := inputHash(len(h.hashtable), input, 0)
	e, isNew, ok := h.reserveSlot(state, idx)
	if !ok {
		return false
	}
	if isNew {
		copy(e.input, input)
		copy(e.output, output)
	} else {
		for i := range input {
			e.input[i] = input[i]
		}
		for i := range output {
			e.output[i] = output[i]
		}
	}
	e.next = h.hashtable[idx]
	h.hashtable[idx] = e
	if isNew {
		h.population++
	}
	return true
}

// populationAndHits returns the population/hit/lookup counters the purge
// heuristic (CacheState.purgeHead) consumes.
func (h *CacheHead) populationAndHits() (population, hits, lookups int) {
	return h.population, h.chits, h.clookups
}

// clear frees h's owned dataTable chain and hashtable, resetting its
// statistics. Used by Reset (in both release modes) and by a targeted
// purge; refCnt is untouched since clear does not imply the head itself
// is no longer referenced by any chain.
func (h *CacheHead) clear() {
	h.hashtable = nil
	h.tables = nil
	h.population = 0
	h.chits = 0
	h.clookups = 0
}

// purged reports whether h has already been cleared (hashtable == nil).
func (h *CacheHead) purged() bool { return h.hashtable == nil }

// freeable reports whether h may be unlinked from its directory bucket and
// discarded: no chain still references its chain class, and it carries no
// live hashtable.
func (h *CacheHead) freeable() bool { return h.refCnt == 0 && h.purged() }
