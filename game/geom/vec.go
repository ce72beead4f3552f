// Package geom holds the small amount of 3D vector math the combat core needs.
// Y is up; entities steer on the X/Z plane.
package geom

import "math"

// Vec3 is a 3D vector or point.
type Vec3 struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
	Z float64 `json:"z" yaml:"z" toml:"z"`
}

// Zero is the zero vector.
var Zero = Vec3{}

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Len returns the Euclidean length.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// IsZero reports whether every component is exactly zero.
func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Norm returns the unit vector, or Zero for a zero-length vector.
func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Zero
	}
	return v.Scale(1 / l)
}

// Flat drops the vertical component.
func (v Vec3) Flat() Vec3 { return Vec3{X: v.X, Z: v.Z} }

// Dist returns the distance between two points.
func Dist(a, b Vec3) float64 { return b.Sub(a).Len() }

// AngleBetween returns the unsigned angle in degrees between two directions.
// Either vector being zero yields 0.
func AngleBetween(a, b Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < 1e-9 || lb < 1e-9 {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}

// Rotate returns v rotated about the Y axis by deg degrees.
func (v Vec3) Rotate(deg float64) Vec3 {
	r := deg * math.Pi / 180
	s, c := math.Sin(r), math.Cos(r)
	return Vec3{X: v.X*c - v.Z*s, Y: v.Y, Z: v.X*s + v.Z*c}
}
