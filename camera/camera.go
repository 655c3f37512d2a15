// Package camera holds the camera definition consumed by the tile scheduler.
package camera

import (
	"math"

	"github.com/openalp/firn/tile"
)

// Definition is a camera pose together with its projection parameters. It is
// a value object: the scheduler stores the most recent one and replaces it
// wholesale on every update, there are no partial updates.
type Definition struct {
	Position       tile.Vec3
	ViewportWidth  uint32
	ViewportHeight uint32

	// Vertical field of view in radians.
	FieldOfView float64
}

// ScreenSpaceSize projects a world space length at the given distance from
// the camera to an on screen size in pixels.
func (d Definition) ScreenSpaceSize(worldSize, distance float64) float64 {
	if distance <= 0 {
		return math.Inf(1)
	}

	visibleHeight := 2 * distance * math.Tan(d.FieldOfView/2)
	return worldSize * float64(d.ViewportHeight) / visibleHeight
}
