package tile

// BoundsProvider derives the world space bounding volume of a tile.
// Implementations sit on the hot refinement path and are called for every
// visited tile on every refresh: they must be pure, deterministic and cheap.
type BoundsProvider interface {
	Bounds(id Id) Bounds
}

// MapBounds is a BoundsProvider over a square world anchored at the origin.
// Zoom level z subdivides the extent into 2^z by 2^z tiles. All tiles share
// the same height range; a provider with per-tile terrain heights can wrap
// this one.
type MapBounds struct {
	Extent    float64
	MinHeight float64
	MaxHeight float64
}

func (m MapBounds) Bounds(id Id) Bounds {
	size := m.Extent / float64(uint64(1)<<id.Zoom)
	minX := float64(id.Coords.X) * size
	minY := float64(id.Coords.Y) * size

	return Bounds{
		Min: Vec3{X: minX, Y: minY, Z: m.MinHeight},
		Max: Vec3{X: minX + size, Y: minY + size, Z: m.MaxHeight},
	}
}
