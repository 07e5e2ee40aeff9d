package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rasterworks/coccache"
)

// Collector adapts a CacheState.Snapshot() source to Prometheus gauges,
// implementing coccache.MetricsRecorder. It can be stored in Config via
// coccache.WithMetrics, but coccache never calls RecordSnapshot itself:
// the caller feeds it CacheState.Snapshot() results. The core package
// never imports prometheus.
type Collector struct {
	totalCount  prometheus.Gauge
	purgedCount prometheus.Gauge
	population  prometheus.Gauge
	chits       prometheus.Counter
	clookups    prometheus.Counter

	lastChits    int
	lastClookups int
}

// NewCollector builds a Collector and registers its gauges/counters with
// reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		totalCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coccache", Name: "total_heads", Help: "Number of CacheHeads across all directory buckets.",
		}),
		purgedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coccache", Name: "purged_heads", Help: "Number of CacheHeads currently purged (hashtable == nil).",
		}),
		population: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coccache", Name: "population", Help: "Total live cache entries across all heads.",
		}),
		chits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coccache", Name: "chits_total", Help: "Cumulative cache hits across all heads.",
		}),
		clookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coccache", Name: "clookups_total", Help: "Cumulative cache lookups across all heads.",
		}),
	}
	reg.MustRegister(c.totalCount, c.purgedCount, c.population, c.chits, c.clookups)
	return c
}

// RecordSnapshot implements coccache.MetricsRecorder. snap.Chits/Clookups
// are cumulative totals as of the snapshot; a Prometheus counter only
// ever moves forward, so this adds the delta since the last recorded
// snapshot. A Reset/Purge can drop a head's counters back to zero, which
// would make the delta negative -- in that case the whole new total is
// added instead, since the prior increments are already baked into the
// Prometheus counter and cannot be retracted.
func (c *Collector) RecordSnapshot(snap coccache.Snapshot) {
	c.totalCount.Set(float64(snap.TotalCount))
	c.purgedCount.Set(float64(snap.PurgedCount))
	c.population.Set(float64(snap.Population))

	if snap.Chits >= c.lastChits {
		c.chits.Add(float64(snap.Chits - c.lastChits))
	} else {
		c.chits.Add(float64(snap.Chits))
	}
	c.lastChits = snap.Chits

	if snap.Clookups >= c.lastClookups {
		c.clookups.Add(float64(snap.Clookups - c.lastClookups))
	} else {
		c.clookups.Add(float64(snap.Clookups))
	}
	c.lastClookups = snap.Clookups
}
