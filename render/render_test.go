package render

import (
	"testing"

	"github.com/openalp/firn/tile"
	"github.com/stretchr/testify/require"
)

func TestHeadless(t *testing.T) {
	quad := tile.GpuQuad{Id: tile.Root()}

	t.Run("uploaded quads become resident", func(t *testing.T) {
		w := NewHeadless()
		w.UploadQuads([]tile.GpuQuad{quad})

		require.Equal(t, 1, w.ResidentCount())
		require.True(t, w.Resident(tile.Root()))
		require.Equal(t, []tile.Id{tile.Root()}, w.ResidentIds())
	})

	t.Run("evicted quads lose residency", func(t *testing.T) {
		w := NewHeadless()
		w.UploadQuads([]tile.GpuQuad{quad})
		w.EvictQuads([]tile.Id{tile.Root()})

		require.Equal(t, 0, w.ResidentCount())
		require.False(t, w.Resident(tile.Root()))
	})

	t.Run("evicting a non resident quad panics", func(t *testing.T) {
		w := NewHeadless()
		require.Panics(t, func() {
			w.EvictQuads([]tile.Id{tile.Root()})
		})
	})

	t.Run("resize is recorded", func(t *testing.T) {
		w := NewHeadless()
		w.RequestResize(800, 600)

		width, height := w.DrawableSize()
		require.Equal(t, uint32(800), width)
		require.Equal(t, uint32(600), height)
	})

	t.Run("emissions after close are discarded", func(t *testing.T) {
		w := NewHeadless()
		w.UploadQuads([]tile.GpuQuad{quad})
		w.Close()

		require.Equal(t, 0, w.ResidentCount())

		w.UploadQuads([]tile.GpuQuad{quad})
		require.Equal(t, 0, w.ResidentCount())

		require.NotPanics(t, func() {
			w.EvictQuads([]tile.Id{tile.Root()})
		})
	})
}
