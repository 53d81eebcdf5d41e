// Package mapper converts drawing points between data space and screen space.
package mapper

import (
	"math"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/tfutils"
)

// DataWindow is what the host knows about the series currently handed to the chart.
type DataWindow interface {
	Interval() string
	VisibleData() []candle.Candle
}

// Mapper converts between (time, price) and (x, y). Lookups that cannot be
// resolved report ok=false; callers skip the operation.
type Mapper struct {
	chart  chart.Chart
	window DataWindow
}

// New returns a mapper over the chart primitives of c, falling back to
// window for times and coordinates the chart cannot resolve.
func New(c chart.Chart, window DataWindow) *Mapper {
	return &Mapper{chart: c, window: window}
}

// Chart returns the underlying chart.
func (m *Mapper) Chart() chart.Chart {
	return m.chart
}

// IntervalSeconds returns the bar length of the current interval, or 0.
func (m *Mapper) IntervalSeconds() int64 {
	return tfutils.IntervalSeconds(m.window.Interval())
}

// ToScreen converts a data point to screen coordinates.
func (m *Mapper) ToScreen(p drawing.Point) (geometry.Point, bool) {
	x, ok := m.X(p.Time)
	if !ok {
		return geometry.Point{}, false
	}
	y, ok := m.Y(p.Price)
	if !ok {
		return geometry.Point{}, false
	}
	return geometry.Point{X: x, Y: y}, true
}

// ToData converts a screen point to a data point.
func (m *Mapper) ToData(s geometry.Point) (drawing.Point, bool) {
	price, ok := m.Price(s.Y)
	if !ok {
		return drawing.Point{}, false
	}
	t, ok := m.Time(s.X)
	if !ok {
		return drawing.Point{}, false
	}
	return drawing.Point{Time: t, Price: price}, true
}

// Y converts a price to a screen y.
func (m *Mapper) Y(price float64) (float64, bool) {
	return m.chart.PriceToCoordinate(price)
}

// Price converts a screen y to a price.
func (m *Mapper) Price(y float64) (float64, bool) {
	return m.chart.CoordinateToPrice(y)
}

// Logical converts a screen x to a fractional bar index.
func (m *Mapper) Logical(x float64) (float64, bool) {
	return m.chart.CoordinateToLogical(x)
}

// X converts a time key to a screen x. Times the chart cannot place directly
// are extrapolated from the nearest visible candle at or before them.
func (m *Mapper) X(t int64) (float64, bool) {
	if x, ok := m.chart.TimeToCoordinate(t); ok {
		return x, true
	}

	secs := m.IntervalSeconds()
	data := m.window.VisibleData()
	if secs <= 0 || len(data) == 0 {
		return 0, false
	}

	idx := candle.IndexAtOrBefore(data, t)
	if idx < 0 {
		idx = 0
	}
	anchor := data[idx]
	logical := float64(idx) + float64(t-anchor.Time())/float64(secs)
	return m.chart.LogicalToCoordinate(logical)
}

// Time converts a screen x to a time key. When the chart has no candle under
// x, the time is synthesized from the nearest real candle found by scanning
// backward from the clicked bar index.
func (m *Mapper) Time(x float64) (int64, bool) {
	if t, ok := m.chart.CoordinateToTime(x); ok {
		return t, true
	}

	secs := m.IntervalSeconds()
	if secs <= 0 {
		return 0, false
	}
	logical, ok := m.chart.CoordinateToLogical(x)
	if !ok {
		return 0, false
	}

	start := int(math.Floor(logical))
	if n := len(m.window.VisibleData()); start > n-1 {
		start = n - 1
	}
	for i := start; i >= 0; i-- {
		c, ok := m.chart.DataByIndex(i)
		if !ok {
			continue
		}
		bars := math.Round(logical - float64(i))
		return c.Time() + int64(bars)*secs, true
	}
	return 0, false
}
