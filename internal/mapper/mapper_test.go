package mapper

import (
	"testing"

	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/chart/charttest"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapper_Direct(t *testing.T) {
	v := charttest.NewViewport()
	m := New(v, v)

	s, ok := m.ToScreen(drawing.Point{Time: charttest.TimeOf(20), Price: 450})
	require.True(t, ok)
	assert.InDelta(t, charttest.X(20), s.X, 1e-9)
	assert.InDelta(t, charttest.Y(450), s.Y, 1e-9)

	p, ok := m.ToData(s)
	require.True(t, ok)
	assert.Equal(t, charttest.TimeOf(20), p.Time)
	assert.InDelta(t, 450, p.Price, 1e-9)
}

func TestMapper_ExtrapolatesDuringReplay(t *testing.T) {
	v := charttest.NewViewport()
	v.SetReplay(50)
	m := New(v, v)

	t.Run("Future time maps relative to last rendered candle", func(t *testing.T) {
		x, ok := m.X(charttest.TimeOf(60))
		require.True(t, ok)
		expected, _ := v.LogicalToCoordinate(60)
		assert.InDelta(t, expected, x, 1e-9)
	})

	t.Run("Click past the replay edge synthesizes the bar time", func(t *testing.T) {
		x, _ := v.LogicalToCoordinate(55.2)
		y, _ := v.PriceToCoordinate(500)
		p, ok := m.ToData(geometry.Pt(x, y))
		require.True(t, ok)
		assert.Equal(t, charttest.TimeOf(55), p.Time)
		assert.InDelta(t, 500, p.Price, 1e-9)
	})

	t.Run("Round trip of an extrapolated point", func(t *testing.T) {
		in := drawing.Point{Time: charttest.TimeOf(57), Price: 300}
		s, ok := m.ToScreen(in)
		require.True(t, ok)
		out, ok := m.ToData(s)
		require.True(t, ok)
		assert.Equal(t, in.Time, out.Time)
		assert.InDelta(t, in.Price, out.Price, 1e-9)
	})

	t.Run("Time before the window anchors on the first candle", func(t *testing.T) {
		x, ok := m.X(charttest.TimeOf(-3))
		require.True(t, ok)
		expected, _ := v.LogicalToCoordinate(-3)
		assert.InDelta(t, expected, x, 1e-9)
	})
}

func TestMapper_SoftFailures(t *testing.T) {
	t.Run("Unknown interval", func(t *testing.T) {
		v := chart.NewViewport(charttest.Series(10), "weird", 100, 100)
		m := New(v, v)
		_, ok := m.X(charttest.TimeOf(20))
		assert.False(t, ok)
		_, ok = m.Time(500)
		assert.False(t, ok)
	})

	t.Run("Empty series", func(t *testing.T) {
		v := chart.NewViewport(nil, charttest.Interval, 100, 100)
		m := New(v, v)
		_, ok := m.ToScreen(drawing.Point{Time: 1, Price: 1})
		assert.False(t, ok)
		_, ok = m.ToData(geometry.Pt(10, 10))
		assert.False(t, ok)
	})

	t.Run("Click left of the first bar", func(t *testing.T) {
		v := charttest.NewViewport()
		m := New(v, v)
		v.ScrollBars(-20)
		_, ok := m.Time(0)
		assert.False(t, ok)
	})
}

func TestMapper_IntervalSeconds(t *testing.T) {
	v := charttest.NewViewport()
	assert.Equal(t, int64(3600), New(v, v).IntervalSeconds())
}
