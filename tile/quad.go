package tile

// Data is the payload fetched for a single tile. Either raster may be nil
// when the corresponding fetch failed or has not completed; the scheduler
// substitutes placeholders at promotion time.
type Data struct {
	Id     Id
	Ortho  *Raster
	Height *Raster
}

// Quad is the unit of fetch and caching: a parent id together with the
// payloads of its four children, in Children() order. Quads are immutable
// after construction by the loader.
type Quad struct {
	Id    Id
	Tiles [4]Data
}

// CacheKey returns the id the quad is cached under.
func (q Quad) CacheKey() Id {
	return q.Id
}

// GpuData is the render ready payload of a single tile.
type GpuData struct {
	Id     Id
	Bounds Bounds
	Ortho  *Raster
	Height *Raster
}

// GpuQuad is the render ready counterpart of a Quad, derived once by the
// scheduler when a resident quad first becomes eligible for promotion.
type GpuQuad struct {
	Id    Id
	Tiles [4]GpuData
}

// GpuCacheInfo marks a quad as resident on the rendering device.
type GpuCacheInfo struct {
	Id Id
}

// CacheKey returns the id the info is cached under.
func (i GpuCacheInfo) CacheKey() Id {
	return i.Id
}
