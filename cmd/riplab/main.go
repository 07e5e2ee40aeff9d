// Command riplab drives coccache the way a RIP's page-rasterization loop
// would: a pool of workers, each owning one CacheState, running synthetic
// chain invocations over pseudo-random pages. It exists for manual
// exploration and benchmarking, not as part of the cache's test suite.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rasterworks/coccache"
	"github.com/rasterworks/coccache/internal/telemetry"
)

func main() {
	pages := flag.Int("pages", 200, "number of synthetic pages to simulate")
	workers := flag.Int("workers", 4, "number of concurrent worker goroutines")
	colorantPool := flag.Int("colorant-pool", 16, "distinct colorant values per page (controls hit rate)")
	lowMemory := flag.Bool("lowmem", false, "use the reduced-footprint table/bucket presets")
	traceCache := flag.Bool("trace", false, "set Config.TraceCache (riplab prints no histograms)")
	seed := flag.Int64("seed", 1, "RNG seed; same seed reproduces the same run")
	redisAddr := flag.String("redis-addr", "", "optional redis address to publish aggregate snapshots to")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := coccache.NewConfig(
		coccache.WithLowMemory(*lowMemory),
		coccache.WithTraceCache(*traceCache),
		coccache.WithLogger(logger),
	)

	var publisher *telemetry.Publisher
	if *redisAddr != "" {
		publisher = telemetry.NewPublisher(*redisAddr, "coccache:riplab:snapshot", logger)
		defer publisher.Close()
	}

	result, err := simulate(context.Background(), cfg, *pages, *workers, *colorantPool, *seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, "riplab: simulation failed:", err)
		os.Exit(1)
	}

	var totalLookups, totalHits int
	for _, r := range result.pages {
		totalLookups += r.lookups
		totalHits += r.hits
	}
	var agg coccache.Snapshot
	for _, snap := range result.workerSnapshots {
		agg.TotalCount += snap.TotalCount
		agg.PurgedCount += snap.PurgedCount
		agg.Population += snap.Population
		agg.Chits += snap.Chits
		agg.Clookups += snap.Clookups
	}

	hitRate := 0.0
	if totalLookups > 0 {
		hitRate = float64(totalHits) / float64(totalLookups)
	}
	fmt.Printf("pages=%d workers=%d lookups=%d hits=%d hitRate=%.3f\n",
		*pages, *workers, totalLookups, totalHits, hitRate)
	fmt.Printf("aggregate: totalCount=%d purgedCount=%d population=%d chits=%d clookups=%d\n",
		agg.TotalCount, agg.PurgedCount, agg.Population, agg.Chits, agg.Clookups)

	if publisher != nil {
		if err := publisher.Publish(context.Background(), agg); err != nil {
			logger.Warn("riplab: failed to publish snapshot", zap.Error(err))
		}
	}
}
