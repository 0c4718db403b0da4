// Package geom holds the small 2D primitives shared by the world model and
// the collision engine.
package geom

import "math"

// Point2D is a position on the map plane, in world units.
type Point2D struct {
	X float64
	Y float64
}

// Vec2D is a displacement or velocity in world units.
type Vec2D struct {
	X float64
	Y float64
}

// Add returns p shifted by v.
func (p Point2D) Add(v Vec2D) Point2D {
	return Point2D{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the vector leading from q to p.
func (p Point2D) Sub(q Point2D) Vec2D {
	return Vec2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns v multiplied by k.
func (v Vec2D) Scale(k float64) Vec2D {
	return Vec2D{X: v.X * k, Y: v.Y * k}
}

// Dot returns the dot product of v and w.
func (v Vec2D) Dot(w Vec2D) float64 {
	return v.X*w.X + v.Y*w.Y
}

// SqLen returns the squared length of v.
func (v Vec2D) SqLen() float64 {
	return v.Dot(v)
}

// Len returns the length of v.
func (v Vec2D) Len() float64 {
	return math.Sqrt(v.SqLen())
}

// Rect is an axis-aligned box. Min must not exceed Max on either axis.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Contains reports whether p lies inside r, borders included.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// IntersectsSegment reports whether the segment from a to b touches r.
// Uses Liang-Barsky clipping; a degenerate segment reduces to Contains.
func (r Rect) IntersectsSegment(a, b Point2D) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := b.X-a.X, b.Y-a.Y

	edges := [4][2]float64{
		{-dx, a.X - r.MinX},
		{dx, r.MaxX - a.X},
		{-dy, a.Y - r.MinY},
		{dy, r.MaxY - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return t0 <= t1
}
