package tile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdChildren(t *testing.T) {
	t.Run("root children", func(t *testing.T) {
		children := Root().Children()

		require.Equal(t, [4]Id{
			{Zoom: 1, Coords: Coords{X: 0, Y: 0}},
			{Zoom: 1, Coords: Coords{X: 1, Y: 0}},
			{Zoom: 1, Coords: Coords{X: 0, Y: 1}},
			{Zoom: 1, Coords: Coords{X: 1, Y: 1}},
		}, children)
	})

	t.Run("children of an offset tile", func(t *testing.T) {
		id := Id{Zoom: 3, Coords: Coords{X: 5, Y: 2}}
		children := id.Children()

		require.Equal(t, [4]Id{
			{Zoom: 4, Coords: Coords{X: 10, Y: 4}},
			{Zoom: 4, Coords: Coords{X: 11, Y: 4}},
			{Zoom: 4, Coords: Coords{X: 10, Y: 5}},
			{Zoom: 4, Coords: Coords{X: 11, Y: 5}},
		}, children)
	})

	t.Run("every child's parent is the tile itself", func(t *testing.T) {
		id := Id{Zoom: 7, Coords: Coords{X: 42, Y: 17}}
		for _, child := range id.Children() {
			require.Equal(t, id, child.Parent())
		}
	})
}

func TestIdParent(t *testing.T) {
	t.Run("the root is its own parent", func(t *testing.T) {
		require.Equal(t, Root(), Root().Parent())
	})

	t.Run("coordinates are halved", func(t *testing.T) {
		id := Id{Zoom: 5, Coords: Coords{X: 11, Y: 6}}
		require.Equal(t, Id{Zoom: 4, Coords: Coords{X: 5, Y: 3}}, id.Parent())
	})
}

func TestIdString(t *testing.T) {
	id := Id{Zoom: 12, Coords: Coords{X: 2216, Y: 1420}}
	require.Equal(t, "12/2216/1420", id.String())
}

func TestIdAsMapKey(t *testing.T) {
	m := map[Id]string{
		{Zoom: 1, Coords: Coords{X: 0, Y: 1}}: "a",
	}

	require.Equal(t, "a", m[Id{Zoom: 1, Coords: Coords{X: 0, Y: 1}}])
	_, ok := m[Id{Zoom: 1, Coords: Coords{X: 1, Y: 0}}]
	require.False(t, ok)
}
