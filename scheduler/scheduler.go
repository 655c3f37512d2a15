// Package scheduler decides which terrain tiles are needed for the current
// camera, requests the missing ones from a loader and keeps the two cache
// tiers, fetched quads in RAM and render ready quads on the GPU, bounded and
// consistent while loads complete out of order.
package scheduler

import (
	"sync"
	"time"

	"github.com/openalp/firn/cache"
	"github.com/openalp/firn/camera"
	"github.com/openalp/firn/quadtree"
	"github.com/openalp/firn/tile"
)

const (
	// DefaultOrthoTileSize is the texel footprint of an imagery tile.
	DefaultOrthoTileSize = 256

	// DefaultHeightTileSize is the texel footprint of an elevation tile.
	DefaultHeightTileSize = 65

	// The RAM tier is only purged once it holds this multiple of its limit.
	// Purging right after filling up to capacity would thrash on every
	// insert.
	ramPurgeHeadroom = 1.1
)

// QuadLoader receives batches of tile ids to fetch. Requests are emitted from
// inside the scheduler's update cycle: implementations must return quickly
// and must not call back into the scheduler synchronously.
type QuadLoader interface {
	RequestQuads(ids []tile.Id)
}

// GpuTarget receives render ready quads to upload and quad ids whose device
// resources can be freed. Within one update cycle the uploaded and evicted id
// sets never overlap, and uploads are always emitted before evictions.
type GpuTarget interface {
	UploadQuads(quads []tile.GpuQuad)
	EvictQuads(ids []tile.Id)
}

// Options configure a Scheduler. Loader, Target and Bounds are mandatory;
// limits, timeouts and the error threshold must be positive. Malformed
// options are a wiring bug and make New panic.
type Options struct {
	Loader QuadLoader
	Target GpuTarget
	Bounds tile.BoundsProvider

	RamQuadLimit                int
	GpuQuadLimit                int
	PermissibleScreenSpaceError float64
	UpdateTimeout               time.Duration
	PurgeTimeout                time.Duration

	// Texel footprints of the tiles served by the loader. Zero values fall
	// back to the defaults.
	OrthoTileSize  uint32
	HeightTileSize uint32
}

// Scheduler coordinates camera updates, tile arrivals and cache eviction.
// All state is guarded by a single mutex: direct calls and timer callbacks
// are serialized, there is no other concurrency inside the core.
type Scheduler struct {
	mutex sync.Mutex

	loader QuadLoader
	target GpuTarget
	bounds tile.BoundsProvider

	camera camera.Definition

	ramCache  *cache.Cache[tile.Id, tile.Quad]
	gpuCached *cache.Cache[tile.Id, tile.GpuCacheInfo]

	ramQuadLimit                int
	gpuQuadLimit                int
	permissibleScreenSpaceError float64
	updateTimeout               time.Duration
	purgeTimeout                time.Duration

	enabled       bool
	updateTimer   *time.Timer
	purgeTimer    *time.Timer
	updatePending bool
	purgePending  bool

	orthoTileSize     uint32
	heightTileSize    uint32
	defaultOrthoTile  *tile.Raster
	defaultHeightTile *tile.Raster
}

// Stats is a snapshot of the scheduler's cache occupancy.
type Stats struct {
	RamQuads int  `json:"ram_quads"`
	GpuQuads int  `json:"gpu_quads"`
	Enabled  bool `json:"enabled"`
}

// New returns a started, enabled scheduler. It panics when opts violate the
// wiring contract.
func New(opts Options) *Scheduler {
	if opts.Loader == nil {
		panic("scheduler: loader is not set")
	}
	if opts.Target == nil {
		panic("scheduler: gpu target is not set")
	}
	if opts.Bounds == nil {
		panic("scheduler: bounds provider is not set")
	}
	if opts.RamQuadLimit <= 0 || opts.GpuQuadLimit <= 0 {
		panic("scheduler: quad limits must be positive")
	}
	if opts.PermissibleScreenSpaceError <= 0 {
		panic("scheduler: permissible screen space error must be positive")
	}
	if opts.UpdateTimeout <= 0 || opts.PurgeTimeout <= 0 {
		panic("scheduler: timeouts must be positive")
	}

	orthoSize := opts.OrthoTileSize
	if orthoSize == 0 {
		orthoSize = DefaultOrthoTileSize
	}
	heightSize := opts.HeightTileSize
	if heightSize == 0 {
		heightSize = DefaultHeightTileSize
	}

	return &Scheduler{
		loader: opts.Loader,
		target: opts.Target,
		bounds: opts.Bounds,

		ramCache:  cache.New(opts.RamQuadLimit, tile.Quad.CacheKey),
		gpuCached: cache.New(opts.GpuQuadLimit, tile.GpuCacheInfo.CacheKey),

		ramQuadLimit:                opts.RamQuadLimit,
		gpuQuadLimit:                opts.GpuQuadLimit,
		permissibleScreenSpaceError: opts.PermissibleScreenSpaceError,
		updateTimeout:               opts.UpdateTimeout,
		purgeTimeout:                opts.PurgeTimeout,

		enabled: true,

		orthoTileSize:     orthoSize,
		heightTileSize:    heightSize,
		defaultOrthoTile:  tile.SolidRaster(orthoSize, 0xff),
		defaultHeightTile: tile.SolidRaster(heightSize, 0x00),
	}
}

// UpdateCamera replaces the stored camera and schedules a refresh. Calls
// landing while the update timer is armed are absorbed: the eventual refresh
// reads the latest camera, not the one present when the timer was started.
func (s *Scheduler) UpdateCamera(cam camera.Definition) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.camera = cam
	s.scheduleUpdate()
}

// ReceiveQuads inserts newly loaded quads into the RAM tier and schedules
// both a refresh and a purge. Stale deliveries for ids that are no longer
// wanted are accepted; the next purge cycle discards them.
func (s *Scheduler) ReceiveQuads(quads []tile.Quad) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ramCache.Insert(quads...)
	instrumentRamOccupancy(s.ramCache.Len())

	s.schedulePurge()
	s.scheduleUpdate()
}

// SendQuadRequests computes the tile ids required for the current camera,
// removes the ones already resident in the RAM tier and emits the remainder
// to the loader. With an unchanged camera and cache the emission is
// idempotent.
func (s *Scheduler) SendQuadRequests() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sendQuadRequests()
}

// UpdateGpuQuads promotes resident quads the camera needs to the GPU tier and
// emits the resulting upload and eviction lists to the target.
func (s *Scheduler) UpdateGpuQuads() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.updateGpuQuads()
}

// PurgeRamCache evicts RAM tier quads that the current camera no longer
// needs. It is a no-op while occupancy stays below 1.1 times the configured
// limit.
func (s *Scheduler) PurgeRamCache() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.purgeRamCache()
}

// RamCache exposes the RAM tier for wiring and inspection. Callers must not
// touch it while timer callbacks may fire, it shares the scheduler's locking.
func (s *Scheduler) RamCache() *cache.Cache[tile.Id, tile.Quad] {
	return s.ramCache
}

// Enabled reports whether the scheduler reacts to events.
func (s *Scheduler) Enabled() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.enabled
}

// SetEnabled switches event handling on or off. Re-enabling schedules a
// refresh right away. Timers already armed when disabling still fire.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.enabled = enabled
	s.scheduleUpdate()
}

// SetRamQuadLimit updates the RAM tier capacity applied by future purges.
func (s *Scheduler) SetRamQuadLimit(limit int) {
	if limit <= 0 {
		panic("scheduler: ram quad limit must be positive")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ramQuadLimit = limit
	s.ramCache.SetCapacity(limit)
}

// SetGpuQuadLimit updates the GPU tier capacity applied by future purges.
func (s *Scheduler) SetGpuQuadLimit(limit int) {
	if limit <= 0 {
		panic("scheduler: gpu quad limit must be positive")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.gpuQuadLimit = limit
	s.gpuCached.SetCapacity(limit)
}

// SetPermissibleScreenSpaceError updates the refinement threshold.
func (s *Scheduler) SetPermissibleScreenSpaceError(v float64) {
	if v <= 0 {
		panic("scheduler: permissible screen space error must be positive")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.permissibleScreenSpaceError = v
}

// SetUpdateTimeout updates the refresh debounce delay. An armed update timer
// is restarted with the new delay.
func (s *Scheduler) SetUpdateTimeout(d time.Duration) {
	if d <= 0 {
		panic("scheduler: update timeout must be positive")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.updateTimeout = d
	if s.updatePending {
		s.updateTimer.Stop()
		s.updateTimer = time.AfterFunc(d, s.onUpdateTimeout)
	}
}

// SetPurgeTimeout updates the purge debounce delay. An armed purge timer is
// restarted with the new delay.
func (s *Scheduler) SetPurgeTimeout(d time.Duration) {
	if d <= 0 {
		panic("scheduler: purge timeout must be positive")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.purgeTimeout = d
	if s.purgePending {
		s.purgeTimer.Stop()
		s.purgeTimer = time.AfterFunc(d, s.onPurgeTimeout)
	}
}

// Stats returns a snapshot of the cache occupancy.
func (s *Scheduler) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Stats{
		RamQuads: s.ramCache.Len(),
		GpuQuads: s.gpuCached.Len(),
		Enabled:  s.enabled,
	}
}

// Close stops any armed timers.
func (s *Scheduler) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.enabled = false
	if s.updateTimer != nil {
		s.updateTimer.Stop()
		s.updatePending = false
	}
	if s.purgeTimer != nil {
		s.purgeTimer.Stop()
		s.purgePending = false
	}
}

// scheduleUpdate arms the update timer. Trailing edge debounce: while the
// timer is armed further calls are no-ops. Callers must hold the mutex.
func (s *Scheduler) scheduleUpdate() {
	if !s.enabled || s.updatePending {
		return
	}
	s.updatePending = true
	s.updateTimer = time.AfterFunc(s.updateTimeout, s.onUpdateTimeout)
}

// schedulePurge arms the purge timer. Callers must hold the mutex.
func (s *Scheduler) schedulePurge() {
	if !s.enabled || s.purgePending {
		return
	}
	s.purgePending = true
	s.purgeTimer = time.AfterFunc(s.purgeTimeout, s.onPurgeTimeout)
}

func (s *Scheduler) onUpdateTimeout() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	start := time.Now()
	s.updatePending = false

	// Requests go out before promotion so a tile cannot reach the GPU before
	// its missing siblings have been asked for.
	s.sendQuadRequests()
	s.updateGpuQuads()

	instrumentUpdateCycle(time.Since(start))
}

func (s *Scheduler) onPurgeTimeout() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.purgePending = false
	s.purgeRamCache()
}

func (s *Scheduler) refineFunctor() func(tile.Id) bool {
	return RefineFunctor(s.camera, s.bounds, s.permissibleScreenSpaceError, s.orthoTileSize)
}

func (s *Scheduler) tilesForCurrentCamera() []tile.Id {
	return quadtree.Traverse(tile.Root(), s.refineFunctor(), tile.Id.Children)
}

func (s *Scheduler) sendQuadRequests() {
	active := s.tilesForCurrentCamera()

	missing := make([]tile.Id, 0, len(active))
	for _, id := range active {
		if !s.ramCache.Contains(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	instrumentQuadsRequested(len(missing))
	s.loader.RequestQuads(missing)
}

func (s *Scheduler) updateGpuQuads() {
	shouldRefine := s.refineFunctor()

	var newGpuQuads []tile.GpuQuad
	s.ramCache.Visit(func(q tile.Quad) bool {
		if !shouldRefine(q.Id) {
			return false
		}
		if s.gpuCached.Contains(q.Id) {
			return true
		}

		newGpuQuads = append(newGpuQuads, s.gpuQuad(q))
		return true
	})

	infos := make([]tile.GpuCacheInfo, 0, len(newGpuQuads))
	for _, q := range newGpuQuads {
		infos = append(infos, tile.GpuCacheInfo{Id: q.Id})
	}
	s.gpuCached.Insert(infos...)

	s.gpuCached.Visit(func(i tile.GpuCacheInfo) bool {
		return shouldRefine(i.Id)
	})
	superfluous := s.gpuCached.Purge()

	// A quad staged above and evicted right away by capacity pressure must
	// reach the renderer in neither list.
	superfluousIds := make(map[tile.Id]struct{}, len(superfluous))
	for _, i := range superfluous {
		superfluousIds[i.Id] = struct{}{}
	}

	kept := newGpuQuads[:0]
	for _, q := range newGpuQuads {
		if _, ok := superfluousIds[q.Id]; ok {
			delete(superfluousIds, q.Id)
			continue
		}
		kept = append(kept, q)
	}
	newGpuQuads = kept

	removed := make([]tile.Id, 0, len(superfluousIds))
	for id := range superfluousIds {
		removed = append(removed, id)
	}

	if len(newGpuQuads) != 0 {
		instrumentGpuQuadsAdded(len(newGpuQuads))
		s.target.UploadQuads(newGpuQuads)
	}
	if len(removed) != 0 {
		instrumentGpuQuadsEvicted(len(removed))
		s.target.EvictQuads(removed)
	}
	instrumentGpuOccupancy(s.gpuCached.Len())
}

func (s *Scheduler) purgeRamCache() {
	if s.ramCache.Len() < int(float64(s.ramQuadLimit)*ramPurgeHeadroom) {
		return
	}

	shouldRefine := s.refineFunctor()
	s.ramCache.Visit(func(q tile.Quad) bool {
		return shouldRefine(q.Id)
	})

	purged := s.ramCache.Purge()
	instrumentRamQuadsPurged(len(purged))
	instrumentRamOccupancy(s.ramCache.Len())
}

// gpuQuad derives the render ready counterpart of a resident quad,
// substituting placeholder rasters for child payloads that have not arrived.
func (s *Scheduler) gpuQuad(q tile.Quad) tile.GpuQuad {
	gpu := tile.GpuQuad{Id: q.Id}
	for i, t := range q.Tiles {
		gpu.Tiles[i].Id = t.Id
		gpu.Tiles[i].Bounds = s.bounds.Bounds(t.Id)

		gpu.Tiles[i].Ortho = t.Ortho
		if gpu.Tiles[i].Ortho == nil {
			gpu.Tiles[i].Ortho = s.defaultOrthoTile
		}

		gpu.Tiles[i].Height = t.Height
		if gpu.Tiles[i].Height == nil {
			gpu.Tiles[i].Height = s.defaultHeightTile
		}
	}
	return gpu
}
