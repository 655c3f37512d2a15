package scheduler

import (
	"testing"

	"github.com/openalp/firn/tile"
	"github.com/stretchr/testify/require"
)

func TestRefineFunctor(t *testing.T) {
	t.Run("a near tile refines, a far one does not", func(t *testing.T) {
		refine := RefineFunctor(closeCamera(), testBounds, 2, DefaultOrthoTileSize)

		require.True(t, refine(tile.Root()))
		require.False(t, RefineFunctor(farCamera(), testBounds, 2, DefaultOrthoTileSize)(tile.Root()))
	})

	t.Run("a higher threshold refines less", func(t *testing.T) {
		strict := RefineFunctor(closeCamera(), testBounds, 0.5, DefaultOrthoTileSize)
		lax := RefineFunctor(closeCamera(), testBounds, 500, DefaultOrthoTileSize)

		id := tile.Id{Zoom: 4, Coords: tile.Coords{X: 8, Y: 8}}
		require.True(t, strict(id))
		require.False(t, lax(id))
	})

	t.Run("descent stops at the maximum zoom level", func(t *testing.T) {
		// A threshold this low would otherwise refine forever near the camera.
		refine := RefineFunctor(closeCamera(), testBounds, 1e-12, DefaultOrthoTileSize)

		scale := uint32(1) << (MaxZoomLevel - 1)
		require.True(t, refine(tile.Id{
			Zoom:   MaxZoomLevel - 1,
			Coords: tile.Coords{X: scale / 2, Y: scale / 2},
		}))
		require.False(t, refine(tile.Id{
			Zoom:   MaxZoomLevel,
			Coords: tile.Coords{X: scale, Y: scale},
		}))
	})

	t.Run("a camera inside the tile volume still terminates", func(t *testing.T) {
		cam := closeCamera()
		cam.Position = tile.Vec3{X: 500, Y: 500, Z: 50}
		refine := RefineFunctor(cam, testBounds, 2, DefaultOrthoTileSize)

		// The distance clamp keeps the estimate finite; the predicate must
		// still answer for the tile the camera sits in.
		require.True(t, refine(tile.Root()))
	})
}
