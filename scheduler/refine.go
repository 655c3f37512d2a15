package scheduler

import (
	"github.com/openalp/firn/camera"
	"github.com/openalp/firn/tile"
)

// MaxZoomLevel is the deepest zoom level the refinement predicate descends
// to. Tile services do not provide data past this level.
const MaxZoomLevel = 18

// RefineFunctor returns the screen space error predicate that decides whether
// a tile must be subdivided for the given camera. A tile needs refinement
// when one of its texels, projected under the camera, covers more than
// permissibleScreenSpaceError pixels on screen.
//
// The returned closure is evaluated for dozens of tiles on every refresh: it
// allocates nothing and performs no I/O. Larger tile footprints tolerate
// being farther away before requiring refinement.
func RefineFunctor(cam camera.Definition, bounds tile.BoundsProvider, permissibleScreenSpaceError float64, tileSize uint32) func(tile.Id) bool {
	return func(id tile.Id) bool {
		if id.Zoom >= MaxZoomLevel {
			return false
		}

		aabb := bounds.Bounds(id)
		size := aabb.Size()

		extent := size.X
		if size.Y > extent {
			extent = size.Y
		}
		texelSize := extent / float64(tileSize)

		distance := aabb.DistanceTo(cam.Position)
		if distance < texelSize {
			// The camera is inside or next to the tile volume; clamp so the
			// estimate stays finite.
			distance = texelSize
		}

		return cam.ScreenSpaceSize(texelSize, distance) > permissibleScreenSpaceError
	}
}
