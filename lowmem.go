package coccache

// Allocator is the Go-idiomatic stand-in for the original's mm_alloc
// boundary: every allocation point a CacheHead or CacheState crosses after
// it has already been linked into a directory goes through TryAlloc first,
// so tests can inject deterministic "safe allocation failure" without
// needing to actually exhaust memory.
type Allocator interface {
	// TryAlloc reports whether the next allocation should be allowed to
	// proceed. Implementations that always return true behave as if memory
	// is unlimited.
	TryAlloc() bool
}

// RealAllocator is the production Allocator: it never refuses.
type RealAllocator struct{}

// TryAlloc always succeeds.
func (RealAllocator) TryAlloc() bool { return true }

// beginProtectedAlloc implements the allocation-safety barrier (spec
// §4.D): before any allocation made after a head is linked into the
// directory, the head's hashtable is saved and nulled (marking it as
// already-purged, so a low-memory purge triggered re-entrantly by the
// allocation itself is a safe no-op against this head) and purgedCount is
// bumped. endProtectedAlloc restores it. Preconditions: refCnt > 0 and
// hashtable != nil at entry.
func beginProtectedAlloc(state *CacheState, head *CacheHead) (savedHashtable []*CacheEntry) {
	assertWith(state.cfg.Assertions, head.refCnt > 0 && head.hashtable != nil,
		"protected alloc entered unsafely")
	saved := head.hashtable
	head.hashtable = nil
	state.purgedCount++
	return saved
}

func endProtectedAlloc(state *CacheState, head *CacheHead, saved []*CacheEntry) {
	head.hashtable = saved
	state.purgedCount--
}

// withProtectedAlloc runs fn with the allocation-safety barrier held,
// restoring head.hashtable afterwards regardless of fn's outcome. This is
// the scoped-guard realisation the spec's Design Notes (§9) call for; Go
// has no destructor, so the "restore on any exit path" guarantee comes
// from deferring the restore around fn instead.
func withProtectedAlloc(state *CacheState, head *CacheHead, fn func() bool) bool {
	saved := beginProtectedAlloc(state, head)
	defer endProtectedAlloc(state, head, saved)
	return fn()
}
