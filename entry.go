package coccache

// CacheEntry is one cached chain result: an input color vector plus either
// a StyleDLColor or a StyleFinalLink payload, chained into its hashtable
// bucket via next.
//
// Go representation note (see DESIGN.md): the original's COC_ENTRY is a
// manually packed C union of DL_COLOR_ENTRY and FINAL_LINK_ENTRY sharing
// one tag-free memory layout. The teacher (ecache2.go's value{i *interface{};
// b []byte}) already solves this exact problem in Go by carrying both
// payload shapes as separate fields and relying on the caller to know which
// one is live for a given head -- CacheHead.style plays that role here.
// input/output are slices into the owning dataTable's shared backing
// array, not independently allocated.
type CacheEntry struct {
	next *CacheEntry

	input []uint32 // bit-pattern input-color coordinates, length InputColorantCount

	// StyleDLColor payload.
	deviceColor DeviceColor
	spotFlags   byte
	blackType   BlackType
	opacity     Opacity

	// StyleFinalLink payload: bit-pattern output coordinates.
	output []uint32
}

// matchesDLColor reports whether this entry is a hit for a StyleDLColor
// lookup against the given bit-pattern input and opacity/black-type
// lookup key. Comparison is bit-exact (see floatBits/opacityBits in
// types.go): the cache memoizes identical requests, not numerically
// equivalent ones.
func (e *CacheEntry) matchesDLColor(input []uint32, opacity uint32, lookupBlackType uint8) bool {
	if len(e.input) != len(input) {
		return false
	}
	if opacityBits(e.opacity) != opacity {
		return false
	}
	if e.blackType.Lookup() != lookupBlackType {
		return false
	}
	for i, v := range input {
		if e.input[i] != v {
			return false
		}
	}
	return true
}

// matchesFinalLink reports whether this entry is a hit for a
// StyleFinalLink lookup against the given bit-pattern input.
func (e *CacheEntry) matchesFinalLink(input []uint32) bool {
	if len(e.input) != len(input) {
		return false
	}
	for i, v := range input {
		if e.input[i] != v {
			return false
		}
	}
	return true
}
