package render

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/hittest"
	"github.com/amirphl/chart-drawings/internal/interaction"
)

const (
	arrowHeadLength = 10.0
	arrowHeadAngle  = math.Pi / 6
	toolbarGap      = 8.0
	labelPad        = 4.0
)

// ToolbarSize is the floating toolbar footprint in pixels.
type ToolbarSize struct {
	Width  float64
	Height float64
}

// Input is everything Project reads.
type Input struct {
	Drawings []drawing.Drawing
	State    interaction.State
	Tester   *hittest.Tester
	Toolbar  ToolbarSize
}

// Project computes the scene. It does not mutate its input; the same input
// under the same viewport always yields the same scene.
func Project(in Input) Scene {
	vp := in.Tester.Viewport()
	sc := Scene{Width: vp.Width, Height: vp.Height, Shapes: make([]Shape, 0, len(in.Drawings))}
	secs := in.Tester.Mapper().IntervalSeconds()

	for _, d := range in.Drawings {
		sh, ok := shape(in.Tester, d, secs)
		if !ok {
			continue
		}
		sh.Selected = d.ID == in.State.SelectedID
		sh.Hovered = d.ID == in.State.HoveredID
		sc.Shapes = append(sc.Shapes, sh)

		if sh.Selected || sh.Hovered {
			sc.Handles = append(sc.Handles, handles(in.Tester, d)...)
		}
		if sh.Selected && in.State.Phase != interaction.PhaseDragging {
			sc.Toolbar = toolbar(in.Tester, d, in.Toolbar, vp)
		}
	}

	sc.Preview = preview(in, secs)
	return sc
}

func shape(t *hittest.Tester, d drawing.Drawing, secs int64) (Shape, bool) {
	o, ok := t.Outline(d)
	if !ok {
		return Shape{}, false
	}
	sh := Shape{
		ID:       d.ID,
		Kind:     d.Kind,
		Segments: o.Segments,
		Rects:    o.Rects,
		Color:    d.Color,
		Width:    d.Width,
		Style:    d.Style,
		Locked:   d.Locked,
	}

	switch d.Kind {
	case drawing.KindHorizontalLine:
		seg := o.Segments[0]
		sh.Labels = []Label{{Text: formatPrice(d.Points[0].Price), At: geometry.Pt(seg.B.X-labelPad, seg.B.Y-labelPad)}}

	case drawing.KindArrow:
		sh.Segments = append(sh.Segments, arrowHead(o.Segments[0])...)

	case drawing.KindMeasure:
		sh.Labels = []Label{{Text: measureLabel(d, secs), At: o.Rects[0].Center()}}

	case drawing.KindFibonacci:
		for _, l := range o.Levels {
			sh.Labels = append(sh.Labels, Label{
				Text: fmt.Sprintf("%s (%s)", decimal.NewFromFloat(l.Ratio).String(), formatPrice(l.Price)),
				At:   geometry.Pt(l.Segment.A.X+labelPad, l.Segment.A.Y-labelPad),
			})
		}

	case drawing.KindText:
		sh.Labels = []Label{{Text: d.Text, At: o.Anchor, Color: d.Color}}

	case drawing.KindLongPosition, drawing.KindShortPosition:
		legs := d.Legs
		if legs == nil {
			legs = &drawing.PositionLegs{}
		}
		sh.Fills = []Fill{
			{Rect: o.Rects[0], Color: colorOr(legs.TakeProfit.Color, "#26a69a")},
			{Rect: o.Rects[1], Color: colorOr(legs.StopLoss.Color, "#ef5350")},
		}
		sh.Labels = positionLabels(d, o, legs)

	case drawing.KindLine, drawing.KindRay, drawing.KindExtendedLine, drawing.KindVerticalLine,
		drawing.KindZone, drawing.KindChannel:
		// geometry only
	}
	return sh, true
}

func colorOr(c, fallback string) string {
	if c == "" {
		return fallback
	}
	return c
}

func arrowHead(s geometry.Segment) []geometry.Segment {
	dir := s.A.Sub(s.B)
	length := math.Hypot(dir.X, dir.Y)
	if length == 0 {
		return nil
	}
	base := math.Atan2(dir.Y, dir.X)
	out := make([]geometry.Segment, 0, 2)
	for _, a := range []float64{base - arrowHeadAngle, base + arrowHeadAngle} {
		tip := geometry.Pt(s.B.X+arrowHeadLength*math.Cos(a), s.B.Y+arrowHeadLength*math.Sin(a))
		out = append(out, geometry.Seg(s.B, tip))
	}
	return out
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).Round(8).String()
}

func signed(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func measureLabel(d drawing.Drawing, secs int64) string {
	from := decimal.NewFromFloat(d.Points[0].Price)
	to := decimal.NewFromFloat(d.Points[1].Price)
	delta := to.Sub(from)

	pct := "n/a"
	if !from.IsZero() {
		pct = signed(delta.Div(from).Mul(decimal.NewFromInt(100)), 2) + "%"
	}
	bars := int64(0)
	if secs > 0 {
		bars = (d.Points[1].Time - d.Points[0].Time) / secs
	}
	return fmt.Sprintf("%s (%s) %d bars", signed(delta, 2), pct, bars)
}

func positionLabels(d drawing.Drawing, o hittest.Outline, legs *drawing.PositionLegs) []Label {
	entry := decimal.NewFromFloat(d.Points[0].Price)
	pctFrom := func(p float64) string {
		if entry.IsZero() {
			return "n/a"
		}
		return signed(decimal.NewFromFloat(p).Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)), 2) + "%"
	}

	var out []Label
	for _, l := range o.Legs {
		var text string
		var style drawing.LegStyle
		switch l.Leg {
		case drawing.LegEntry:
			style = legs.Entry
			text = fmt.Sprintf("Entry %s Qty %s R:R %s",
				formatPrice(l.Price),
				decimal.NewFromFloat(d.Quantity).String(),
				decimal.NewFromFloat(d.RiskReward()).StringFixed(2))
		case drawing.LegTakeProfit:
			style = legs.TakeProfit
			text = fmt.Sprintf("Target %s (%s)", formatPrice(l.Price), pctFrom(l.Price))
		case drawing.LegStopLoss:
			style = legs.StopLoss
			text = fmt.Sprintf("Stop %s (%s)", formatPrice(l.Price), pctFrom(l.Price))
		}
		if !style.ShowLabel {
			continue
		}
		out = append(out, Label{
			Text:  text,
			At:    geometry.Pt(l.Segment.A.X+labelPad, l.Segment.A.Y-labelPad),
			Color: style.Color,
		})
	}
	return out
}

func handles(t *hittest.Tester, d drawing.Drawing) []Handle {
	var out []Handle
	for i, p := range d.Points {
		s, ok := t.Mapper().ToScreen(p)
		if !ok {
			continue
		}
		out = append(out, Handle{DrawingID: d.ID, Index: i, At: s})
	}
	if !d.Kind.IsPosition() {
		return out
	}
	o, ok := t.Outline(d)
	if !ok {
		return out
	}
	for _, l := range o.Legs {
		if l.Leg == drawing.LegEntry {
			continue
		}
		out = append(out, Handle{DrawingID: d.ID, Index: -1, Leg: l.Leg, At: l.Segment.A})
	}
	return out
}

// toolbar places the action bar above the drawing's anchor, clamped to the
// chart pane.
func toolbar(t *hittest.Tester, d drawing.Drawing, size ToolbarSize, vp geometry.Rect) *Toolbar {
	o, ok := t.Outline(d)
	if !ok {
		return nil
	}
	a := o.Anchor
	x := geometry.Clamp(a.X-size.Width/2, vp.X, vp.X+vp.Width-size.Width)
	y := geometry.Clamp(a.Y-size.Height-toolbarGap, vp.Y, vp.Y+vp.Height-size.Height)
	return &Toolbar{
		DrawingID: d.ID,
		Anchor:    a,
		Rect:      geometry.Rect{X: x, Y: y, Width: size.Width, Height: size.Height},
		Actions:   append([]Action(nil), Actions...),
		Locked:    d.Locked,
	}
}

// preview shows the drawing being built with the live pointer as its next point.
func preview(in Input, secs int64) *Shape {
	st := in.State
	if st.Phase != interaction.PhaseBuilding || len(st.Partial) == 0 || st.Pointer == nil {
		return nil
	}
	kind, ok := st.ActiveTool.Kind()
	if !ok {
		return nil
	}
	pts := append(append([]drawing.Point(nil), st.Partial...), *st.Pointer)
	d := drawing.New(kind, pts)
	d.ID = ""
	sh, ok := shape(in.Tester, d, secs)
	if !ok {
		return nil
	}
	return &sh
}
