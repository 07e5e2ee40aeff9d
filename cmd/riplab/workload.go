package main

import (
	"fmt"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"github.com/rasterworks/coccache"
	"github.com/rasterworks/coccache/internal/synth"
)

// classShape names one synthetic chain-class shape: the link-count and
// colorant arities riplab's generator produces deterministically from a
// seed, so repeated runs with the same seed exercise the same chain
// classes (and the same hash-bucket collisions) every time.
type classShape struct {
	colorSpace    coccache.CLID
	nIn           int
	linkCount     int
	terminatingID coccache.CLID
}

func (s classShape) key() string {
	return fmt.Sprintf("%d/%d/%d/%d", s.colorSpace, s.nIn, s.linkCount, s.terminatingID)
}

// classDescriptor is the concrete coccache.ChainClassDescriptor riplab
// feeds to HeadCreate.
type classDescriptor struct {
	shape    classShape
	links    []coccache.ChainLink
	termIDs  []coccache.CLID
}

func (d *classDescriptor) InputColorSpace() coccache.CLID     { return d.shape.colorSpace }
func (d *classDescriptor) InputColorantCount() int            { return d.shape.nIn }
func (d *classDescriptor) Links() []coccache.ChainLink        { return d.links }
func (d *classDescriptor) TerminatingColorants() []coccache.CLID { return d.termIDs }

// workloadGenerator produces synthetic chain-class descriptors, caching
// them per shape so a worker that meets the same shape on several pages
// does not rebuild an identical link slice. Each worker owns its own
// generator (see runWorker); generators are not shared between workers.
type workloadGenerator struct {
	cache *synth.WorkloadCache[string]
	rng   *rand.Rand
}

func newWorkloadGenerator(seed int64) *workloadGenerator {
	return &workloadGenerator{
		cache: synth.NewWorkloadCache[string](64, 32),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// pageKey hashes a page index to a stable xxhash digest, used both as a
// deterministic per-page RNG seed and as the rendezvous key workers.go
// assigns pages with.
func pageKey(page int) uint64 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(page >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

func (g *workloadGenerator) shapeForPage(page int) classShape {
	r := rand.New(rand.NewSource(int64(pageKey(page))))
	return classShape{
		colorSpace:    coccache.CLID(r.Intn(4)),
		nIn:           1 + r.Intn(4),
		linkCount:     1 + r.Intn(3),
		terminatingID: coccache.CLID(r.Intn(8)),
	}
}

func (g *workloadGenerator) descriptorFor(shape classShape) *classDescriptor {
	if cached, ok := g.cache.Get(shape.key()); ok {
		return cached.(*classDescriptor)
	}
	links := make([]coccache.ChainLink, shape.linkCount)
	for i := range links {
		links[i] = coccache.ChainLink{LinkType: coccache.CLID(i + 1), IDs: []coccache.CLID{coccache.CLID(i)}}
	}
	d := &classDescriptor{
		shape:   shape,
		links:   links,
		termIDs: []coccache.CLID{shape.terminatingID},
	}
	g.cache.Put(shape.key(), d)
	return d
}

// randomColorants fills dst with pseudo-random input colorants; a small
// fixed pool of distinct values per page keeps the page's lookup hit rate
// realistic (real pages re-request the same small set of colors often).
func (g *workloadGenerator) randomColorants(rng *rand.Rand, dst []float32, pool int) {
	for i := range dst {
		dst[i] = float32(rng.Intn(pool)) / float32(pool)
	}
}
