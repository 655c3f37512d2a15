package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ramCachedQuads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "firn_ram_cached_quads",
		Help: "The number of quads resident in the RAM tier.",
	})

	gpuCachedQuads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "firn_gpu_cached_quads",
		Help: "The number of quads resident in the GPU tier.",
	})

	quadsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_quad_requests_total",
		Help: "The number of quad ids emitted to the loader.",
	})

	gpuQuadsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_gpu_quads_added_total",
		Help: "The number of quads uploaded to the render target.",
	})

	gpuQuadsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_gpu_quads_evicted_total",
		Help: "The number of quads evicted from the render target.",
	})

	ramQuadsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firn_ram_quads_purged_total",
		Help: "The number of quads purged from the RAM tier.",
	})

	updateCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "firn_update_cycle_seconds",
		Help: "The time to run one request emission and GPU promotion cycle.",
	})
)

func instrumentRamOccupancy(n int) {
	ramCachedQuads.Set(float64(n))
}

func instrumentGpuOccupancy(n int) {
	gpuCachedQuads.Set(float64(n))
}

func instrumentQuadsRequested(n int) {
	quadsRequested.Add(float64(n))
}

func instrumentGpuQuadsAdded(n int) {
	gpuQuadsAdded.Add(float64(n))
}

func instrumentGpuQuadsEvicted(n int) {
	gpuQuadsEvicted.Add(float64(n))
}

func instrumentRamQuadsPurged(n int) {
	ramQuadsPurged.Add(float64(n))
}

func instrumentUpdateCycle(d time.Duration) {
	updateCycleDuration.Observe(d.Seconds())
}
