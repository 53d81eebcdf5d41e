package snap

import (
	"math"
	"sync/atomic"

	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/mapper"
)

// DefaultMagnetRadius is the soft-magnet catch distance in pixels.
const DefaultMagnetRadius = 8.0

// Engine computes magnet- and angle-adjusted points.
type Engine struct {
	mapper *mapper.Mapper
	mods   *Modifiers
	magnet atomic.Bool
	radius float64
}

// New returns a snapping engine reading modifier keys from mods. radius is
// the soft magnet distance in pixels.
func New(m *mapper.Mapper, mods *Modifiers, radius float64) *Engine {
	if radius <= 0 {
		radius = DefaultMagnetRadius
	}
	return &Engine{mapper: m, mods: mods, radius: radius}
}

// SetMagnet toggles hard magnet mode.
func (e *Engine) SetMagnet(enabled bool) {
	e.magnet.Store(enabled)
}

// Magnet reports whether hard magnet mode is on.
func (e *Engine) Magnet() bool {
	return e.magnet.Load()
}

// Modifiers returns the live modifier flags.
func (e *Engine) Modifiers() *Modifiers {
	return e.mods
}

// MagnetSnap moves p's price to the nearest open/high/low/close of the candle
// under p or its two neighbors. With magnet mode off the snap only happens
// when the level is within the catch radius on screen. Only the price changes.
func (e *Engine) MagnetSnap(p drawing.Point) drawing.Point {
	if e.mods.MagnetOverride() {
		return p
	}

	x, ok := e.mapper.X(p.Time)
	if !ok {
		return p
	}
	logical, ok := e.mapper.Logical(x)
	if !ok {
		return p
	}
	center := int(math.Round(logical))

	best, bestDist, found := 0.0, math.Inf(1), false
	for _, i := range []int{center, center - 1, center + 1} {
		c, ok := e.mapper.Chart().DataByIndex(i)
		if !ok {
			continue
		}
		for _, level := range c.Levels() {
			if d := math.Abs(level - p.Price); d < bestDist {
				best, bestDist, found = level, d, true
			}
		}
	}
	if !found {
		return p
	}

	if !e.magnet.Load() {
		py, ok1 := e.mapper.Y(p.Price)
		ly, ok2 := e.mapper.Y(best)
		if !ok1 || !ok2 || math.Abs(py-ly) > e.radius {
			return p
		}
	}
	return drawing.Point{Time: p.Time, Price: best}
}

// AngleSnap locks current to the anchor's price when movement is mostly
// horizontal on screen, else to the anchor's time. Only active while Shift is held.
func (e *Engine) AngleSnap(anchor, current drawing.Point) drawing.Point {
	if !e.mods.Angle() {
		return current
	}
	a, ok := e.mapper.ToScreen(anchor)
	if !ok {
		return current
	}
	c, ok := e.mapper.ToScreen(current)
	if !ok {
		return current
	}
	if math.Abs(c.X-a.X) > math.Abs(c.Y-a.Y) {
		return drawing.Point{Time: current.Time, Price: anchor.Price}
	}
	return drawing.Point{Time: anchor.Time, Price: current.Price}
}
