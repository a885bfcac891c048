package orbit

import "math"

// Vec3 is a Cartesian vector. Positions are meters unless noted.
type Vec3 [3]float64

func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }

func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{v[0] * k, v[1] * k, v[2] * k} }

func (v Vec3) Dot(w Vec3) float64 { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }

func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Unit returns v scaled to length 1, or the zero vector.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// angleBetween returns the angle between a and b in radians.
func angleBetween(a, b Vec3) float64 {
	c := a.Dot(b) / (a.Norm() * b.Norm())
	return math.Acos(math.Max(-1, math.Min(1, c)))
}
