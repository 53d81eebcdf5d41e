// Package geometry provides screen-space vector math for hit-testing and rendering.
package geometry

import (
	"math"
)

// Point represents a screen point in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt creates a new Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point) Scale(factor float64) Point {
	return Point{X: p.X * factor, Y: p.Y * factor}
}

// Segment is a straight line between two screen points.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Seg creates a new Segment.
func Seg(a, b Point) Segment {
	return Segment{A: a, B: b}
}

// Translate shifts both ends of the segment by d.
func (s Segment) Translate(d Point) Segment {
	return Segment{A: s.A.Add(d), B: s.B.Add(d)}
}

// DistanceTo returns the distance from p to the closest point of the segment.
func (s Segment) DistanceTo(p Point) float64 {
	d := s.B.Sub(s.A)
	lenSq := d.X*d.X + d.Y*d.Y
	if lenSq == 0 {
		return p.Distance(s.A)
	}
	t := ((p.X-s.A.X)*d.X + (p.Y-s.A.Y)*d.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(s.A.Add(d.Scale(t)))
}

// Rect represents an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromPoints returns the rectangle spanned by two corners in any order.
func RectFromPoints(a, b Point) Rect {
	x := math.Min(a.X, b.X)
	y := math.Min(a.Y, b.Y)
	return Rect{X: x, Y: y, Width: math.Abs(a.X - b.X), Height: math.Abs(a.Y - b.Y)}
}

// Contains returns true if the point is inside the rectangle (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Edges returns the four sides of the rectangle, clockwise from the top.
func (r Rect) Edges() [4]Segment {
	tl := Point{X: r.X, Y: r.Y}
	tr := Point{X: r.X + r.Width, Y: r.Y}
	br := Point{X: r.X + r.Width, Y: r.Y + r.Height}
	bl := Point{X: r.X, Y: r.Y + r.Height}
	return [4]Segment{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// ClipLine clips the parametric line a + t*(b-a), t in [tMin, tMax], to the
// rectangle. tMin/tMax may be infinite to describe rays and full lines.
// Returns false when the line does not cross the rectangle or a == b.
func ClipLine(a, b Point, tMin, tMax float64, r Rect) (Segment, bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return Segment{}, false
	}

	// Liang-Barsky
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{a.X - r.X, r.X + r.Width - a.X, a.Y - r.Y, r.Y + r.Height - a.Y}
	for i := 0; i < 4; i++ {
		if p[i] == 0 {
			if q[i] < 0 {
				return Segment{}, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > tMax {
				return Segment{}, false
			}
			if t > tMin {
				tMin = t
			}
		} else {
			if t < tMin {
				return Segment{}, false
			}
			if t < tMax {
				tMax = t
			}
		}
	}
	if math.IsInf(tMin, 0) || math.IsInf(tMax, 0) || tMin > tMax {
		return Segment{}, false
	}
	return Segment{
		A: Point{X: a.X + tMin*dx, Y: a.Y + tMin*dy},
		B: Point{X: a.X + tMax*dx, Y: a.Y + tMax*dy},
	}, true
}

// YAt returns the y of the infinite line through s at x. ok is false for vertical lines.
func (s Segment) YAt(x float64) (float64, bool) {
	dx := s.B.X - s.A.X
	if dx == 0 {
		return 0, false
	}
	return s.A.Y + (x-s.A.X)*(s.B.Y-s.A.Y)/dx, true
}

// Clamp limits v to [lo, hi]. When hi < lo, lo wins.
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
