package tile

import "fmt"

// Coords is the position of a tile within its zoom level.
type Coords struct {
	X uint32
	Y uint32
}

// Id identifies a node of the quad tree decomposition of the map. An id is a
// pure value: equality and map keying are by value, and the same id may refer
// to entries in several cache tiers at once.
type Id struct {
	Zoom   uint32
	Coords Coords
}

// Root returns the id of the quad tree root, 0/0/0.
func Root() Id {
	return Id{}
}

// Children returns the four ids one zoom level below, in x-major order.
func (id Id) Children() [4]Id {
	z := id.Zoom + 1
	x := id.Coords.X * 2
	y := id.Coords.Y * 2

	return [4]Id{
		{Zoom: z, Coords: Coords{X: x, Y: y}},
		{Zoom: z, Coords: Coords{X: x + 1, Y: y}},
		{Zoom: z, Coords: Coords{X: x, Y: y + 1}},
		{Zoom: z, Coords: Coords{X: x + 1, Y: y + 1}},
	}
}

// Parent returns the id one zoom level above. The root is its own parent.
func (id Id) Parent() Id {
	if id.Zoom == 0 {
		return id
	}
	return Id{
		Zoom:   id.Zoom - 1,
		Coords: Coords{X: id.Coords.X / 2, Y: id.Coords.Y / 2},
	}
}

func (id Id) String() string {
	return fmt.Sprintf("%d/%d/%d", id.Zoom, id.Coords.X, id.Coords.Y)
}
