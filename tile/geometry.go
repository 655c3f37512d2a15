package tile

import "math"

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func Add(a, b Vec3) Vec3 {
	return Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func Sub(a, b Vec3) Vec3 {
	return Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func Mul(a Vec3, s float64) Vec3 {
	return Vec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Dot(b Vec3) float64 {
	return v.X*b.X + v.Y*b.Y + v.Z*b.Z
}

func (v Vec3) EqualWithEpsilon(b Vec3, epsilon float64) bool {
	return math.Abs(v.X-b.X) <= epsilon &&
		math.Abs(v.Y-b.Y) <= epsilon &&
		math.Abs(v.Z-b.Z) <= epsilon
}

// Bounds is an axis aligned bounding box in world space.
type Bounds struct {
	Min Vec3
	Max Vec3
}

func (b Bounds) Size() Vec3 {
	return Sub(b.Max, b.Min)
}

func (b Bounds) Center() Vec3 {
	return Mul(Add(b.Min, b.Max), 0.5)
}

func (b Bounds) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// DistanceTo returns the distance from p to the closest point of the box.
// It is 0 when p is inside the box.
func (b Bounds) DistanceTo(p Vec3) float64 {
	dx := axisDistance(p.X, b.Min.X, b.Max.X)
	dy := axisDistance(p.Y, b.Min.Y, b.Max.Y)
	dz := axisDistance(p.Z, b.Min.Z, b.Max.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func axisDistance(v, min, max float64) float64 {
	switch {
	case v < min:
		return min - v
	case v > max:
		return v - max
	default:
		return 0
	}
}
