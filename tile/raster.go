package tile

// Raster is a pixel buffer with a square footprint. Rasters are shared by
// pointer between the cache tiers and any consumer that received one through
// an emission; they must never be mutated after construction.
type Raster struct {
	size   uint32
	pixels []byte
}

// NewRaster wraps pixels into a raster with the given edge footprint. The
// buffer is taken over as is and must not be written to afterwards.
func NewRaster(size uint32, pixels []byte) *Raster {
	return &Raster{size: size, pixels: pixels}
}

// SolidRaster returns a raster with every byte set to value. It backs the
// placeholder tiles substituted for missing payloads.
func SolidRaster(size uint32, value byte) *Raster {
	pixels := make([]byte, size*size)
	for i := range pixels {
		pixels[i] = value
	}
	return &Raster{size: size, pixels: pixels}
}

// Size returns the edge footprint in texels.
func (r *Raster) Size() uint32 {
	return r.size
}

// Pixels returns the underlying buffer. Callers must treat it as read only.
func (r *Raster) Pixels() []byte {
	return r.pixels
}
