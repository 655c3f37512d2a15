package scheduler

import (
	"testing"
	"time"

	"github.com/openalp/firn/tile"
	"github.com/stretchr/testify/require"
)

func TestLoaderWithLogs(t *testing.T) {
	t.Run("requests are forwarded", func(t *testing.T) {
		loader := &stubLoader{}
		decorated := LoaderWithLogs(loader)

		decorated.RequestQuads([]tile.Id{tile.Root()})

		batches := loader.take()
		require.Len(t, batches, 1)
		require.Equal(t, []tile.Id{tile.Root()}, batches[0])
	})

	t.Run("an empty batch is forwarded without panicking", func(t *testing.T) {
		loader := &stubLoader{}
		decorated := LoaderWithLogs(loader)

		require.NotPanics(t, func() {
			decorated.RequestQuads(nil)
		})
		require.Len(t, loader.take(), 1)
	})
}

func TestTargetWithLogs(t *testing.T) {
	t.Run("emissions are forwarded", func(t *testing.T) {
		target := newStubTarget()
		decorated := TargetWithLogs(target, time.Minute)
		defer decorated.Close()

		decorated.UploadQuads([]tile.GpuQuad{{Id: tile.Root()}})
		require.Equal(t, 1, target.residentCount())

		decorated.EvictQuads([]tile.Id{tile.Root()})
		require.Equal(t, 0, target.residentCount())
	})

	t.Run("empty emissions are forwarded without panicking", func(t *testing.T) {
		target := newStubTarget()
		decorated := TargetWithLogs(target, time.Minute)
		defer decorated.Close()

		require.NotPanics(t, func() {
			decorated.UploadQuads(nil)
			decorated.EvictQuads(nil)
		})
	})
}
