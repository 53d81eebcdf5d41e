package hittest

import (
	"testing"

	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/chart/charttest"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(bar int, price float64) drawing.Point {
	return drawing.Point{Time: charttest.TimeOf(bar), Price: price}
}

func newTester() *Tester {
	v := charttest.NewViewport()
	return New(mapper.New(v, v), DefaultPositionWidth)
}

func TestTester_Distance(t *testing.T) {
	tt := newTester()
	long := drawing.NewPosition(drawing.KindLongPosition, pt(10, 400), drawing.DefaultPositionDefaults())

	tests := []struct {
		name     string
		drawing  drawing.Drawing
		at       geometry.Point
		expected float64
	}{
		{"horizontal line", drawing.New(drawing.KindHorizontalLine, []drawing.Point{pt(10, 400)}), geometry.Pt(500, 305), 5},
		{"vertical line", drawing.New(drawing.KindVerticalLine, []drawing.Point{pt(20, 400)}), geometry.Pt(210, 0), 5},
		{"line middle", drawing.New(drawing.KindLine, []drawing.Point{pt(10, 400), pt(30, 400)}), geometry.Pt(200, 290), 10},
		{"line past end", drawing.New(drawing.KindLine, []drawing.Point{pt(10, 400), pt(30, 400)}), geometry.Pt(400, 300), 95},
		{"arrow", drawing.New(drawing.KindArrow, []drawing.Point{pt(10, 400), pt(30, 400)}), geometry.Pt(200, 297), 3},
		{"ray forward", drawing.New(drawing.KindRay, []drawing.Point{pt(10, 400), pt(30, 400)}), geometry.Pt(800, 300), 0},
		{"ray backward", drawing.New(drawing.KindRay, []drawing.Point{pt(10, 400), pt(30, 400)}), geometry.Pt(50, 300), 55},
		{"extended line backward", drawing.New(drawing.KindExtendedLine, []drawing.Point{pt(10, 400), pt(30, 400)}), geometry.Pt(50, 300), 0},
		{"zone inside", drawing.New(drawing.KindZone, []drawing.Point{pt(10, 600), pt(20, 400)}), geometry.Pt(150, 250), 0},
		{"zone outside", drawing.New(drawing.KindZone, []drawing.Point{pt(10, 600), pt(20, 400)}), geometry.Pt(150, 310), 10},
		{"measure outside", drawing.New(drawing.KindMeasure, []drawing.Point{pt(10, 600), pt(20, 400)}), geometry.Pt(95, 250), 10},
		{"channel parallel copy", drawing.New(drawing.KindChannel, []drawing.Point{pt(10, 400), pt(30, 400), pt(20, 500)}), geometry.Pt(200, 252), 2},
		{"channel between lines", drawing.New(drawing.KindChannel, []drawing.Point{pt(10, 400), pt(30, 400), pt(20, 500)}), geometry.Pt(200, 275), 25},
		{"fibonacci half level", drawing.New(drawing.KindFibonacci, []drawing.Point{pt(10, 500), pt(30, 400)}), geometry.Pt(200, 276), 1},
		{"fibonacci outside extent", drawing.New(drawing.KindFibonacci, []drawing.Point{pt(10, 500), pt(30, 400)}), geometry.Pt(400, 275), 95},
		{"text", drawing.New(drawing.KindText, []drawing.Point{pt(10, 400)}), geometry.Pt(108, 304), 5},
		{"position inside band", long, geometry.Pt(150, 298), 0},
		{"position below stop", long, geometry.Pt(150, 310), 6},
		{"position right of band", long, geometry.Pt(300, 300), 75},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := tt.Distance(tc.at, tc.drawing)
			require.True(t, ok)
			assert.InDelta(t, tc.expected, d, 1e-9)
		})
	}
}

func TestTester_DistanceUnresolvable(t *testing.T) {
	v := chart.NewViewport(nil, charttest.Interval, 100, 100)
	tt := New(mapper.New(v, v), 0)
	_, ok := tt.Distance(geometry.Pt(1, 1), drawing.New(drawing.KindLine, []drawing.Point{pt(1, 1), pt(2, 2)}))
	assert.False(t, ok)

	_, ok = newTester().Distance(geometry.Pt(1, 1), drawing.Drawing{Kind: drawing.KindLine, Points: []drawing.Point{pt(1, 1)}})
	assert.False(t, ok)
}

func TestTester_FindNearest(t *testing.T) {
	tt := newTester()
	a := drawing.New(drawing.KindHorizontalLine, []drawing.Point{pt(10, 400)}) // y=300
	b := drawing.New(drawing.KindHorizontalLine, []drawing.Point{pt(10, 410)}) // y=295
	ds := []drawing.Drawing{a, b}

	t.Run("Strictly closest wins", func(t *testing.T) {
		id, ok := tt.FindNearest(geometry.Pt(500, 299), ds, DefaultTolerance)
		require.True(t, ok)
		assert.Equal(t, a.ID, id)

		id, ok = tt.FindNearest(geometry.Pt(500, 296), ds, DefaultTolerance)
		require.True(t, ok)
		assert.Equal(t, b.ID, id)
	})

	t.Run("Nothing beyond tolerance", func(t *testing.T) {
		for _, y := range []float64{200, 311, 284} {
			_, ok := tt.FindNearest(geometry.Pt(500, y), ds, DefaultTolerance)
			assert.False(t, ok, "y=%v", y)
		}
	})

	t.Run("Topmost wins exact ties", func(t *testing.T) {
		c := a.Clone()
		c.ID = "top"
		id, ok := tt.FindNearest(geometry.Pt(500, 300), []drawing.Drawing{a, c}, DefaultTolerance)
		require.True(t, ok)
		assert.Equal(t, "top", id)
	})

	t.Run("Empty list", func(t *testing.T) {
		_, ok := tt.FindNearest(geometry.Pt(500, 300), nil, DefaultTolerance)
		assert.False(t, ok)
	})
}

func TestTester_HandleAt(t *testing.T) {
	tt := newTester()
	line := drawing.New(drawing.KindLine, []drawing.Point{pt(10, 400), pt(30, 400)})

	i, ok := tt.HandleAt(geometry.Pt(110, 300), line, DefaultHandleRadius)
	require.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = tt.HandleAt(geometry.Pt(300, 308), line, DefaultHandleRadius)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = tt.HandleAt(geometry.Pt(130, 300), line, DefaultHandleRadius)
	assert.False(t, ok)

	assert.Equal(t, []geometry.Point{geometry.Pt(105, 300), geometry.Pt(305, 300)}, tt.Handles(line))
}

func TestTester_LegAt(t *testing.T) {
	tt := newTester()
	long := drawing.NewPosition(drawing.KindLongPosition, pt(10, 400), drawing.DefaultPositionDefaults())
	// entry y=300, take profit y=292, stop loss y=304

	tests := []struct {
		at       geometry.Point
		expected drawing.Leg
	}{
		{geometry.Pt(150, 301), drawing.LegEntry},
		{geometry.Pt(150, 305), drawing.LegStopLoss},
		{geometry.Pt(150, 291), drawing.LegTakeProfit},
	}
	for _, tc := range tests {
		t.Run(string(tc.expected), func(t *testing.T) {
			leg, ok := tt.LegAt(tc.at, long, DefaultLegRadius)
			require.True(t, ok)
			assert.Equal(t, tc.expected, leg)
		})
	}

	_, ok := tt.LegAt(geometry.Pt(150, 200), long, DefaultLegRadius)
	assert.False(t, ok)

	_, ok = tt.LegAt(geometry.Pt(105, 300), drawing.New(drawing.KindLine, []drawing.Point{pt(10, 400), pt(30, 400)}), DefaultLegRadius)
	assert.False(t, ok)
}

func TestTester_Levels(t *testing.T) {
	tt := newTester()
	fib := drawing.New(drawing.KindFibonacci, []drawing.Point{pt(10, 500), pt(30, 400)})

	levels := tt.Levels(fib)
	require.Len(t, levels, len(drawing.FibonacciLevels))
	assert.InDelta(t, 400, levels[0].Price, 1e-9)
	assert.InDelta(t, 450, levels[3].Price, 1e-9)
	assert.InDelta(t, 500, levels[len(levels)-1].Price, 1e-9)
	assert.InDelta(t, 105, levels[3].Segment.A.X, 1e-9)
	assert.InDelta(t, 305, levels[3].Segment.B.X, 1e-9)

	assert.Nil(t, tt.Levels(drawing.New(drawing.KindLine, []drawing.Point{pt(10, 400), pt(30, 400)})))
}

func TestChannelOffset(t *testing.T) {
	primary := geometry.Seg(geometry.Pt(0, 0), geometry.Pt(100, 100))
	assert.Equal(t, geometry.Pt(0, -50), ChannelOffset(primary, geometry.Pt(50, 0)))

	vertical := geometry.Seg(geometry.Pt(10, 0), geometry.Pt(10, 100))
	assert.Equal(t, geometry.Pt(30, 0), ChannelOffset(vertical, geometry.Pt(40, 50)))
}
