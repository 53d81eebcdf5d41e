// Package hittest measures how close a screen point is to each drawing.
package hittest

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/mapper"
)

const (
	DefaultTolerance     = 10.0
	DefaultHandleRadius  = 12.0
	DefaultLegRadius     = 20.0
	DefaultPositionWidth = 120.0
)

// Tester resolves pointer positions to drawings, handles and position legs.
type Tester struct {
	mapper        *mapper.Mapper
	positionWidth float64
}

// New returns a tester projecting through m. A non-positive positionWidth
// uses DefaultPositionWidth.
func New(m *mapper.Mapper, positionWidth float64) *Tester {
	if positionWidth <= 0 {
		positionWidth = DefaultPositionWidth
	}
	return &Tester{mapper: m, positionWidth: positionWidth}
}

// Distance returns the screen distance from s to the drawing. ok is false
// when the drawing cannot be projected under the current viewport.
func (t *Tester) Distance(s geometry.Point, d drawing.Drawing) (float64, bool) {
	o, ok := t.Outline(d)
	if !ok {
		return 0, false
	}

	switch d.Kind {
	case drawing.KindHorizontalLine:
		return math.Abs(s.Y - o.Segments[0].A.Y), true

	case drawing.KindVerticalLine:
		return math.Abs(s.X - o.Segments[0].A.X), true

	case drawing.KindLine, drawing.KindArrow, drawing.KindRay, drawing.KindExtendedLine,
		drawing.KindChannel, drawing.KindFibonacci:
		return segmentsDistance(s, o.Segments), true

	case drawing.KindZone, drawing.KindMeasure:
		return rectDistance(s, o.Rects[0]), true

	case drawing.KindText:
		return s.Distance(o.Anchor), true

	case drawing.KindLongPosition, drawing.KindShortPosition:
		for _, r := range o.Rects {
			if r.Contains(s) {
				return 0, true
			}
		}
		return segmentsDistance(s, o.Segments), true
	}
	return 0, false
}

func segmentsDistance(s geometry.Point, segs []geometry.Segment) float64 {
	if len(segs) == 0 {
		return math.Inf(1)
	}
	ds := make([]float64, len(segs))
	for i, seg := range segs {
		ds[i] = seg.DistanceTo(s)
	}
	return floats.Min(ds)
}

func rectDistance(s geometry.Point, r geometry.Rect) float64 {
	if r.Contains(s) {
		return 0
	}
	edges := r.Edges()
	return segmentsDistance(s, edges[:])
}

// FindNearest returns the id of the drawing strictly closest to s within
// tolerance. Later drawings are on top and win exact ties.
func (t *Tester) FindNearest(s geometry.Point, ds []drawing.Drawing, tolerance float64) (string, bool) {
	bestID, best := "", math.Inf(1)
	for i := len(ds) - 1; i >= 0; i-- {
		dist, ok := t.Distance(s, ds[i])
		if !ok || dist > tolerance {
			continue
		}
		if dist < best {
			bestID, best = ds[i].ID, dist
		}
	}
	return bestID, bestID != ""
}

// Handles returns the screen positions of a drawing's control points.
// Points that cannot be projected are omitted.
func (t *Tester) Handles(d drawing.Drawing) []geometry.Point {
	out := make([]geometry.Point, 0, len(d.Points))
	for _, p := range d.Points {
		if s, ok := t.mapper.ToScreen(p); ok {
			out = append(out, s)
		}
	}
	return out
}

// HandleAt returns the index of the control point closest to s within radius.
func (t *Tester) HandleAt(s geometry.Point, d drawing.Drawing, radius float64) (int, bool) {
	idx, best := -1, math.Inf(1)
	for i, p := range d.Points {
		h, ok := t.mapper.ToScreen(p)
		if !ok {
			continue
		}
		if dist := s.Distance(h); dist <= radius && dist < best {
			idx, best = i, dist
		}
	}
	return idx, idx >= 0
}

// LegAt returns the position leg closest to s within radius. The entry leg
// wins ties.
func (t *Tester) LegAt(s geometry.Point, d drawing.Drawing, radius float64) (drawing.Leg, bool) {
	if !d.Kind.IsPosition() {
		return "", false
	}
	o, ok := t.Outline(d)
	if !ok {
		return "", false
	}
	var found drawing.Leg
	best := math.Inf(1)
	for _, l := range o.Legs {
		if dist := l.Segment.DistanceTo(s); dist <= radius && dist < best {
			found, best = l.Leg, dist
		}
	}
	return found, found != ""
}

// Levels returns the fibonacci level lines of d.
func (t *Tester) Levels(d drawing.Drawing) []Level {
	if d.Kind != drawing.KindFibonacci {
		return nil
	}
	o, ok := t.Outline(d)
	if !ok {
		return nil
	}
	return o.Levels
}

// Mapper returns the coordinate mapper the tester projects with.
func (t *Tester) Mapper() *mapper.Mapper {
	return t.mapper
}
