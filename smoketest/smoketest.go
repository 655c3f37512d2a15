// Package smoketest drives a fully wired scheduling pipeline against a
// synthetic in-process tile source and checks the properties the pipeline
// guarantees. It backs the admin smoke-test endpoint and doubles as an
// end-to-end test harness.
package smoketest

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/openalp/firn/camera"
	"github.com/openalp/firn/scheduler"
	"github.com/openalp/firn/tile"
	"github.com/segmentio/encoding/json"
)

type Options struct {
	RamQuadLimit                int
	GpuQuadLimit                int
	PermissibleScreenSpaceError float64

	// Number of camera positions the test flies through.
	Steps int
}

type Results struct {
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration"`

	QuadsRequested int `json:"quads_requested"`
	QuadsUploaded  int `json:"quads_uploaded"`
	QuadsEvicted   int `json:"quads_evicted"`
	RamQuads       int `json:"ram_quads"`
	GpuQuads       int `json:"gpu_quads"`

	Failures []string `json:"failures,omitempty"`
}

// Run flies a camera over a synthetic map, feeding every requested quad back
// into the scheduler, and verifies the pipeline properties: caches stay
// bounded after purging, upload and eviction sets never overlap, evictions
// only name resident quads, and a steady camera produces no re-requests.
func Run(ctx context.Context, opts Options) (Results, error) {
	if opts.RamQuadLimit <= 0 {
		opts.RamQuadLimit = 128
	}
	if opts.GpuQuadLimit <= 0 {
		opts.GpuQuadLimit = 64
	}
	if opts.PermissibleScreenSpaceError <= 0 {
		opts.PermissibleScreenSpaceError = 2
	}
	if opts.Steps <= 0 {
		opts.Steps = 16
	}

	start := time.Now()

	bounds := tile.MapBounds{
		Extent:    40075016,
		MinHeight: 0,
		MaxHeight: 9000,
	}

	loader := &recordingLoader{}
	target := &checkingTarget{resident: make(map[tile.Id]struct{})}

	sched := scheduler.New(scheduler.Options{
		Loader:                      loader,
		Target:                      target,
		Bounds:                      bounds,
		RamQuadLimit:                opts.RamQuadLimit,
		GpuQuadLimit:                opts.GpuQuadLimit,
		PermissibleScreenSpaceError: opts.PermissibleScreenSpaceError,

		// Cycles are driven synchronously below, the timers must never fire.
		UpdateTimeout: time.Hour,
		PurgeTimeout:  time.Hour,
	})
	defer sched.Close()

	var res Results

	for step := 0; step < opts.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return res, errors.New("smoke test canceled").Wrap(err)
		}

		sched.UpdateCamera(orbitCamera(bounds, step, opts.Steps))

		sched.SendQuadRequests()
		if requested := loader.take(); len(requested) != 0 {
			res.QuadsRequested += len(requested)
			sched.ReceiveQuads(syntheticQuads(requested))
		}

		target.beginCycle()
		sched.UpdateGpuQuads()
		res.Failures = append(res.Failures, target.cycleFailures...)

		// The camera did not move, a second pass must request nothing.
		sched.SendQuadRequests()
		if again := loader.take(); len(again) != 0 {
			res.Failures = append(res.Failures,
				fmt.Sprintf("step %d: steady camera re-requested %d quads", step, len(again)))
		}

		sched.PurgeRamCache()
	}

	stats := sched.Stats()
	res.RamQuads = stats.RamQuads
	res.GpuQuads = stats.GpuQuads
	res.QuadsUploaded = target.uploaded
	res.QuadsEvicted = target.evicted

	if stats.GpuQuads > opts.GpuQuadLimit {
		res.Failures = append(res.Failures,
			fmt.Sprintf("gpu tier holds %d quads, limit is %d", stats.GpuQuads, opts.GpuQuadLimit))
	}
	if len(target.resident) != stats.GpuQuads {
		res.Failures = append(res.Failures,
			fmt.Sprintf("window holds %d quads, gpu tier holds %d", len(target.resident), stats.GpuQuads))
	}
	if res.QuadsRequested == 0 || res.QuadsUploaded == 0 {
		res.Failures = append(res.Failures, "the pipeline moved no quads")
	}

	res.Passed = len(res.Failures) == 0
	res.Duration = time.Since(start)
	return res, nil
}

// Handle runs the smoke test and serves its results as JSON.
func Handle(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
		defer cancel()

		res, err := Run(ctx, opts)
		if err != nil {
			logs.Warn(errors.New("smoke test failed to run").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(res)
		if err != nil {
			logs.Error(errors.New("encoding smoke test results failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !res.Passed {
			w.WriteHeader(http.StatusConflict)
		}
		w.Write(body)
	}
}

// orbitCamera positions the camera on a descending orbit over the map center.
func orbitCamera(bounds tile.MapBounds, step, steps int) camera.Definition {
	angle := 2 * math.Pi * float64(step) / float64(steps)
	radius := bounds.Extent / 4
	altitude := bounds.Extent/2 - float64(step)*bounds.Extent/(2.2*float64(steps))

	return camera.Definition{
		Position: tile.Vec3{
			X: bounds.Extent/2 + radius*math.Cos(angle),
			Y: bounds.Extent/2 + radius*math.Sin(angle),
			Z: altitude,
		},
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		FieldOfView:    math.Pi / 3,
	}
}

// syntheticQuads builds fully populated quads for the given ids.
func syntheticQuads(ids []tile.Id) []tile.Quad {
	quads := make([]tile.Quad, 0, len(ids))
	for _, id := range ids {
		q := tile.Quad{Id: id}
		for i, child := range id.Children() {
			q.Tiles[i] = tile.Data{
				Id:     child,
				Ortho:  tile.SolidRaster(scheduler.DefaultOrthoTileSize, 0x7f),
				Height: tile.SolidRaster(scheduler.DefaultHeightTileSize, 0x00),
			}
		}
		quads = append(quads, q)
	}
	return quads
}

type recordingLoader struct {
	requested []tile.Id
}

func (l *recordingLoader) RequestQuads(ids []tile.Id) {
	l.requested = append(l.requested, ids...)
}

func (l *recordingLoader) take() []tile.Id {
	ids := l.requested
	l.requested = nil
	return ids
}

// checkingTarget tracks residency and records property violations per cycle.
type checkingTarget struct {
	resident map[tile.Id]struct{}

	uploadedInCycle map[tile.Id]struct{}
	cycleFailures   []string

	uploaded int
	evicted  int
}

func (t *checkingTarget) beginCycle() {
	t.uploadedInCycle = make(map[tile.Id]struct{})
	t.cycleFailures = nil
}

func (t *checkingTarget) UploadQuads(quads []tile.GpuQuad) {
	for _, q := range quads {
		if _, ok := t.resident[q.Id]; ok {
			t.cycleFailures = append(t.cycleFailures,
				fmt.Sprintf("quad %s uploaded while already resident", q.Id))
		}
		for _, child := range q.Tiles {
			if child.Ortho == nil || child.Height == nil {
				t.cycleFailures = append(t.cycleFailures,
					fmt.Sprintf("quad %s uploaded with a nil raster", q.Id))
			}
		}
		t.resident[q.Id] = struct{}{}
		t.uploadedInCycle[q.Id] = struct{}{}
		t.uploaded++
	}
}

func (t *checkingTarget) EvictQuads(ids []tile.Id) {
	for _, id := range ids {
		if _, ok := t.uploadedInCycle[id]; ok {
			t.cycleFailures = append(t.cycleFailures,
				fmt.Sprintf("quad %s uploaded and evicted in the same cycle", id))
		}
		if _, ok := t.resident[id]; !ok {
			t.cycleFailures = append(t.cycleFailures,
				fmt.Sprintf("quad %s evicted while not resident", id))
		}
		delete(t.resident, id)
		t.evicted++
	}
}
