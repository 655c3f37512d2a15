package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/openalp/firn/tile"
)

// TargetWithLogs decorates a GpuTarget with debug logs for every emission and
// a periodic info level summary of emission counts. Close stops the summary
// worker and flushes a last summary.
func TargetWithLogs(t GpuTarget, summaryInterval time.Duration) *LoggedTarget {
	ctx, cancel := context.WithCancel(context.Background())

	target := &LoggedTarget{
		GpuTarget:          t,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go target.startSummaryWorker(ctx)
	return target
}

// LoggedTarget is a GpuTarget decorated with emission logging.
type LoggedTarget struct {
	GpuTarget

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int
}

func (t *LoggedTarget) UploadQuads(quads []tile.GpuQuad) {
	t.GpuTarget.UploadQuads(quads)
	if len(quads) == 0 {
		return
	}

	logs.WithTag("quad_count", len(quads)).
		WithTag("first_quad", quads[0].Id.String()).
		Debug("quads uploaded")
	t.incCounter("quads_uploaded", len(quads))
}

func (t *LoggedTarget) EvictQuads(ids []tile.Id) {
	t.GpuTarget.EvictQuads(ids)
	if len(ids) == 0 {
		return
	}

	logs.WithTag("quad_count", len(ids)).
		WithTag("first_quad", ids[0].String()).
		Debug("quads evicted")
	t.incCounter("quads_evicted", len(ids))
}

func (t *LoggedTarget) Close() {
	t.closeSummaryWorker()
	t.logSummary()
}

func (t *LoggedTarget) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(t.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			t.logSummary()
		}
	}
}

func (t *LoggedTarget) incCounter(name string, n int) {
	t.counterMutex.Lock()
	defer t.counterMutex.Unlock()

	t.counter[name] += n
}

func (t *LoggedTarget) logSummary() {
	t.counterMutex.Lock()
	defer t.counterMutex.Unlock()

	if len(t.counter) == 0 {
		return
	}

	entry := logs.WithTag("time_interval", t.summaryInterval)
	for k, v := range t.counter {
		entry = entry.WithTag(k, v)
		delete(t.counter, k)
	}

	entry.Info("gpu emission summary")
}

// LoaderWithLogs decorates a QuadLoader with a debug log per request batch.
func LoaderWithLogs(l QuadLoader) QuadLoader {
	return &loaderWithLogs{QuadLoader: l}
}

type loaderWithLogs struct {
	QuadLoader
}

func (l *loaderWithLogs) RequestQuads(ids []tile.Id) {
	if len(ids) != 0 {
		logs.WithTag("quad_count", len(ids)).
			WithTag("first_quad", ids[0].String()).
			Debug("quads requested")
	}

	l.QuadLoader.RequestQuads(ids)
}
