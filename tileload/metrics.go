package tileload

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tileFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_tile_fetches_total",
		Help: "The number of tile payloads fetched over the network.",
	})

	tileFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_tile_fetch_errors_total",
		Help: "The number of failed tile fetches.",
	})

	tileFetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_tile_fetch_bytes_total",
		Help: "The number of tile payload bytes fetched over the network.",
	})

	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_tile_cache_hits_total",
		Help: "The number of tile fetches served from the payload cache.",
	})

	batchLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "firn_quad_batch_load_seconds",
		Help:    "The time to load and assemble one batch of quads.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	batchQuads = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "firn_quad_batch_size",
		Help:    "The number of quads per delivered batch.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func instrumentFetch(bytes int) {
	tileFetches.Inc()
	tileFetchBytes.Add(float64(bytes))
}

func instrumentFetchError() {
	tileFetchErrors.Inc()
}

func instrumentCacheHit() {
	tileCacheHits.Inc()
}

func instrumentBatchLoaded(quads int, d time.Duration) {
	batchQuads.Observe(float64(quads))
	batchLoadDuration.Observe(d.Seconds())
}
