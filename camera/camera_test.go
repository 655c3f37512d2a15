package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScreenSpaceSize(t *testing.T) {
	cam := Definition{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		FieldOfView:    math.Pi / 2,
	}

	t.Run("a length spanning the frustum fills the viewport", func(t *testing.T) {
		// At 90 degrees vertical FOV the visible height equals 2x distance.
		require.InDelta(t, 1080, cam.ScreenSpaceSize(20, 10), 1e-9)
	})

	t.Run("size shrinks linearly with distance", func(t *testing.T) {
		near := cam.ScreenSpaceSize(1, 10)
		far := cam.ScreenSpaceSize(1, 20)
		require.InDelta(t, near/2, far, 1e-9)
	})

	t.Run("size grows linearly with world size", func(t *testing.T) {
		small := cam.ScreenSpaceSize(1, 10)
		large := cam.ScreenSpaceSize(3, 10)
		require.InDelta(t, small*3, large, 1e-9)
	})

	t.Run("a narrower field of view magnifies", func(t *testing.T) {
		narrow := Definition{ViewportHeight: 1080, FieldOfView: math.Pi / 4}
		wide := Definition{ViewportHeight: 1080, FieldOfView: math.Pi / 2}
		require.Greater(t,
			narrow.ScreenSpaceSize(1, 10),
			wide.ScreenSpaceSize(1, 10))
	})

	t.Run("zero distance projects to infinity", func(t *testing.T) {
		require.True(t, math.IsInf(cam.ScreenSpaceSize(1, 0), 1))
		require.True(t, math.IsInf(cam.ScreenSpaceSize(1, -5), 1))
	})
}
