package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/dgryski/go-rendezvous"
	"golang.org/x/sync/errgroup"

	"github.com/rasterworks/coccache"
)

// pageResult summarizes one simulated page's run, fed back to main for
// the aggregate report.
type pageResult struct {
	page    int
	worker  int
	lookups int
	hits    int
}

// simResult is simulate's full return value: per-page hit/lookup counts
// plus one final CacheState.Snapshot() per worker (not per page -- a
// worker's CacheState accumulates across every page it served).
type simResult struct {
	pages           []pageResult
	workerSnapshots []coccache.Snapshot
}

// simulate runs pageCount synthetic pages across workerCount workers,
// each worker owning its own CacheState (spec §5: one CacheState per
// goroutine). Pages are assigned to workers by rendezvous (HRW) hashing
// on the page's xxhash digest, so which worker serves a given page is
// stable across runs with the same seed even as workerCount changes --
// the same property HRW gives a distributed cache's shard assignment.
func simulate(ctx context.Context, cfg coccache.Config, pageCount, workerCount, colorantPool int, seed int64) (simResult, error) {
	workerNames := make([]string, workerCount)
	for i := range workerNames {
		workerNames[i] = fmt.Sprintf("worker-%d", i)
	}
	hasher := rendezvous.New(workerNames, func(s string) uint64 { return pageKey(hashWorkerSeed(s)) })

	assignments := make([][]int, workerCount)
	indexOf := make(map[string]int, workerCount)
	for i, name := range workerNames {
		indexOf[name] = i
	}
	for page := 0; page < pageCount; page++ {
		chosen := hasher.Lookup(fmt.Sprintf("page-%d", page))
		w := indexOf[chosen]
		assignments[w] = append(assignments[w], page)
	}

	pages := make([]pageResult, pageCount)
	snapshots := make([]coccache.Snapshot, workerCount)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workerCount; w++ {
		w := w
		g.Go(func() error {
			snap, err := runWorker(gctx, cfg, w, assignments[w], colorantPool, seed, pages)
			if err != nil {
				return err
			}
			snapshots[w] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return simResult{}, err
	}
	return simResult{pages: pages, workerSnapshots: snapshots}, nil
}

// hashWorkerSeed folds a worker name into an int usable by pageKey's
// xxhash digest, so rendezvous scoring and page-seed derivation share one
// hash primitive.
func hashWorkerSeed(s string) int {
	h := 0
	for _, c := range s {
		h = h*131 + int(c)
	}
	return h
}

// runWorker owns one CacheState for the lifetime of its assigned pages,
// running each page's synthetic chains through HeadCreate/Lookup/Insert.
func runWorker(ctx context.Context, cfg coccache.Config, worker int, pages []int, colorantPool int, seed int64, results []pageResult) (coccache.Snapshot, error) {
	state, err := coccache.NewCacheState(cfg)
	if err != nil {
		return coccache.Snapshot{}, err
	}
	gen := newWorkloadGenerator(seed + int64(worker))
	pool := newFakeDeviceColorPool()
	pc := &pageContext{dcc: pool}
	state.SetPageContext(pc)

	for _, page := range pages {
		select {
		case <-ctx.Done():
			return coccache.Snapshot{}, ctx.Err()
		default:
		}
		results[page] = runPage(state, gen, pool, page, colorantPool, worker)
	}
	return state.Snapshot(), nil
}

// runPage runs one simulated page: a burst of chain invocations reusing a
// small pool of distinct input colorants (so repeat lookups actually hit)
// against one freshly generated chain class, then reports its counters.
func runPage(state *coccache.CacheState, gen *workloadGenerator, pool *fakeDeviceColorPool, page, colorantPool, worker int) pageResult {
	rng := rand.New(rand.NewSource(int64(pageKey(page))))
	shape := gen.shapeForPage(page)
	class := gen.descriptorFor(shape)
	style := coccache.StyleDLColor
	nOut := 0
	if shape.linkCount%2 == 0 {
		style = coccache.StyleFinalLink
		nOut = 1 + rng.Intn(3)
	}

	var head *coccache.CacheHead
	var ok bool
	lookups, hits := 0, 0
	const invocationsPerPage = 64
	for i := 0; i < invocationsPerPage; i++ {
		firstUse := i == 0
		chain := &syntheticChain{
			class: class,
			input: make([]float32, shape.nIn),
			state: &chainState{dcc: pool},
		}
		gen.randomColorants(rng, chain.input, colorantPool)
		if style == coccache.StyleFinalLink {
			chain.finalOut = make([]float32, nOut)
		}

		if head == nil {
			head, ok = state.HeadCreate(class, firstUse, style, nOut)
			if !ok {
				continue
			}
		}

		lookups++
		if state.Lookup(head, chain) {
			hits++
			continue
		}
		runChain(rng, chain, pool, style)
		state.Insert(head, chain)
	}

	return pageResult{
		page:    page,
		worker:  worker,
		lookups: lookups,
		hits:    hits,
	}
}
