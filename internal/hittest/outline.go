package hittest

import (
	"math"

	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
)

// Level is one fibonacci retracement line in screen space.
type Level struct {
	Ratio   float64
	Price   float64
	Segment geometry.Segment
}

// LegLine is one price line of a position drawing in screen space.
type LegLine struct {
	Leg     drawing.Leg
	Price   float64
	Segment geometry.Segment
}

// Outline is the screen-space geometry of a drawing under the current viewport.
type Outline struct {
	Segments []geometry.Segment
	Rects    []geometry.Rect
	Levels   []Level
	Legs     []LegLine
	Anchor   geometry.Point
}

// Viewport returns the chart's drawable area.
func (t *Tester) Viewport() geometry.Rect {
	w, h := t.mapper.Chart().Size()
	return geometry.Rect{Width: w, Height: h}
}

func (t *Tester) screenPoints(d drawing.Drawing) ([]geometry.Point, bool) {
	out := make([]geometry.Point, len(d.Points))
	for i, p := range d.Points {
		s, ok := t.mapper.ToScreen(p)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// Outline projects a drawing to screen space. A channel with only two points
// yields its primary line, which is what an in-progress channel shows. ok is
// false when any needed lookup fails or the drawing has too few points.
func (t *Tester) Outline(d drawing.Drawing) (Outline, bool) {
	if len(d.Points) == 0 {
		return Outline{}, false
	}
	if len(d.Points) < d.Kind.Arity() && !(d.Kind == drawing.KindChannel && len(d.Points) == 2) {
		return Outline{}, false
	}
	vp := t.Viewport()

	switch d.Kind {
	case drawing.KindHorizontalLine:
		y, ok := t.mapper.Y(d.Points[0].Price)
		if !ok {
			return Outline{}, false
		}
		anchor := geometry.Pt(0, y)
		if x, ok := t.mapper.X(d.Points[0].Time); ok {
			anchor.X = x
		}
		return Outline{
			Segments: []geometry.Segment{geometry.Seg(geometry.Pt(vp.X, y), geometry.Pt(vp.X+vp.Width, y))},
			Anchor:   anchor,
		}, true

	case drawing.KindVerticalLine:
		x, ok := t.mapper.X(d.Points[0].Time)
		if !ok {
			return Outline{}, false
		}
		anchor := geometry.Pt(x, 0)
		if y, ok := t.mapper.Y(d.Points[0].Price); ok {
			anchor.Y = y
		}
		return Outline{
			Segments: []geometry.Segment{geometry.Seg(geometry.Pt(x, vp.Y), geometry.Pt(x, vp.Y+vp.Height))},
			Anchor:   anchor,
		}, true

	case drawing.KindLongPosition, drawing.KindShortPosition:
		return t.positionOutline(d)

	case drawing.KindFibonacci:
		return t.fibonacciOutline(d)
	}

	pts, ok := t.screenPoints(d)
	if !ok {
		return Outline{}, false
	}
	out := Outline{Anchor: pts[0]}

	switch d.Kind {
	case drawing.KindLine, drawing.KindArrow:
		out.Segments = []geometry.Segment{geometry.Seg(pts[0], pts[1])}

	case drawing.KindRay:
		seg, ok := geometry.ClipLine(pts[0], pts[1], 0, math.Inf(1), vp)
		if !ok {
			seg = geometry.Seg(pts[0], pts[1])
		}
		out.Segments = []geometry.Segment{seg}

	case drawing.KindExtendedLine:
		seg, ok := geometry.ClipLine(pts[0], pts[1], math.Inf(-1), math.Inf(1), vp)
		if !ok {
			seg = geometry.Seg(pts[0], pts[1])
		}
		out.Segments = []geometry.Segment{seg}

	case drawing.KindZone, drawing.KindMeasure:
		out.Rects = []geometry.Rect{geometry.RectFromPoints(pts[0], pts[1])}

	case drawing.KindChannel:
		primary := geometry.Seg(pts[0], pts[1])
		out.Segments = []geometry.Segment{primary}
		if len(pts) > 2 {
			out.Segments = append(out.Segments, primary.Translate(ChannelOffset(primary, pts[2])))
		}

	case drawing.KindText:
		// anchor only

	default:
		return Outline{}, false
	}
	return out, true
}

// ChannelOffset returns the translation from a channel's primary line to its
// parallel copy: the vertical distance of p from the line, or the horizontal
// one when the line is vertical.
func ChannelOffset(primary geometry.Segment, p geometry.Point) geometry.Point {
	if y, ok := primary.YAt(p.X); ok {
		return geometry.Pt(0, p.Y-y)
	}
	return geometry.Pt(p.X-primary.A.X, 0)
}

// FibonacciPrice returns the price of a retracement ratio between the two
// anchors. Ratio 0 sits on the second anchor and 1 on the first.
func FibonacciPrice(d drawing.Drawing, ratio float64) float64 {
	p0, p1 := d.Points[0].Price, d.Points[1].Price
	return p1 + (p0-p1)*ratio
}

func (t *Tester) fibonacciOutline(d drawing.Drawing) (Outline, bool) {
	pts, ok := t.screenPoints(d)
	if !ok {
		return Outline{}, false
	}
	x0, x1 := math.Min(pts[0].X, pts[1].X), math.Max(pts[0].X, pts[1].X)

	out := Outline{Anchor: pts[0]}
	for _, r := range drawing.FibonacciLevels {
		price := FibonacciPrice(d, r)
		y, ok := t.mapper.Y(price)
		if !ok {
			return Outline{}, false
		}
		seg := geometry.Seg(geometry.Pt(x0, y), geometry.Pt(x1, y))
		out.Levels = append(out.Levels, Level{Ratio: r, Price: price, Segment: seg})
		out.Segments = append(out.Segments, seg)
	}
	return out, true
}

func (t *Tester) positionOutline(d drawing.Drawing) (Outline, bool) {
	entry, ok := t.mapper.ToScreen(d.Points[0])
	if !ok {
		return Outline{}, false
	}
	x0, x1 := entry.X, entry.X+t.positionWidth

	out := Outline{Anchor: entry}
	ys := make(map[drawing.Leg]float64, len(drawing.Legs))
	for _, leg := range drawing.Legs {
		price, _ := d.LegPrice(leg)
		y, ok := t.mapper.Y(price)
		if !ok {
			return Outline{}, false
		}
		ys[leg] = y
		seg := geometry.Seg(geometry.Pt(x0, y), geometry.Pt(x1, y))
		out.Legs = append(out.Legs, LegLine{Leg: leg, Price: price, Segment: seg})
		out.Segments = append(out.Segments, seg)
	}

	// profit zone first, then loss zone
	out.Rects = []geometry.Rect{
		geometry.RectFromPoints(geometry.Pt(x0, ys[drawing.LegEntry]), geometry.Pt(x1, ys[drawing.LegTakeProfit])),
		geometry.RectFromPoints(geometry.Pt(x0, ys[drawing.LegEntry]), geometry.Pt(x1, ys[drawing.LegStopLoss])),
	}
	return out, true
}
