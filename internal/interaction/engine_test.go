package interaction

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/chart/charttest"
	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/snap"
	"github.com/amirphl/chart-drawings/internal/store"
)

type fakeHost struct {
	*chart.Viewport
	text     string
	textOK   bool
	requests int
	edit     func(drawing.Drawing) (drawing.Drawing, EditResult)
}

func (h *fakeHost) RequestText(string) (string, bool) {
	h.requests++
	return h.text, h.textOK
}

func (h *fakeHost) EditDrawing(d drawing.Drawing) (drawing.Drawing, EditResult) {
	if h.edit == nil {
		return d, EditCancelled
	}
	return h.edit(d)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	engine *Engine
	view   *chart.Viewport
	host   *fakeHost
	store  *store.Store
}

func newFixture(t *testing.T, v *chart.Viewport, opts ...Option) *fixture {
	t.Helper()
	host := &fakeHost{Viewport: v, text: "label", textOK: true}
	s := store.New("BTCUSDT")
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e := New(v, host, s, config.DefaultEngine(), opts...)
	return &fixture{engine: e, view: v, host: host, store: s}
}

// at returns the screen point of (bar, price) on the default viewport.
func at(bar int, price float64) geometry.Point {
	return geometry.Pt(charttest.X(bar), charttest.Y(price))
}

func dp(bar int, price float64) drawing.Point {
	return drawing.Point{Time: charttest.TimeOf(bar), Price: price}
}

func only(t *testing.T, s *store.Store) drawing.Drawing {
	t.Helper()
	list := s.List()
	require.Len(t, list, 1)
	return list[0]
}

// btcViewport is a 1h BTCUSDT chart priced around 45000 with 4 price units per pixel.
func btcViewport() *chart.Viewport {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make([]candle.Candle, 100)
	for i := range series {
		series[i] = candle.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      45050, High: 45150, Low: 44950, Close: 45080,
			Symbol: "BTCUSDT", Timeframe: "1h",
		}
	}
	series[10].High = 45210
	v := chart.NewViewport(series, "1h", 1000, 500)
	v.SetPriceRange(44000, 46000)
	return v
}

func btcY(price float64) float64 {
	return (46000 - price) / 2000 * 500
}

func TestEngine_HorizontalLineAt45000(t *testing.T) {
	f := newFixture(t, btcViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))

	f.engine.Click(geometry.Pt(charttest.X(10), btcY(45000)))

	d := only(t, f.store)
	assert.Equal(t, drawing.KindHorizontalLine, d.Kind)
	require.Len(t, d.Points, 1)
	assert.Equal(t, 45000.0, d.Points[0].Price)
	assert.Equal(t, f.view.Series()[10].Time(), d.Points[0].Time)

	st := f.engine.State()
	assert.Equal(t, drawing.ToolCursor, st.ActiveTool)
	assert.Equal(t, d.ID, st.SelectedID)
	assert.Equal(t, PhaseSelected, st.Phase)
}

func TestEngine_MagnetSnapsToCandleHigh(t *testing.T) {
	f := newFixture(t, btcViewport())
	f.engine.SetMagnet(true)
	assert.True(t, f.engine.Magnet())
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))

	// 2px below the 45210 high
	f.engine.Click(geometry.Pt(charttest.X(10), btcY(45210)+2))

	assert.Equal(t, 45210.0, only(t, f.store).Points[0].Price)
}

func TestEngine_LongPositionDefaults(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLongPosition))
	f.engine.Click(at(10, 100))

	d := only(t, f.store)
	assert.Equal(t, drawing.KindLongPosition, d.Kind)
	assert.InDelta(t, 100, d.Points[0].Price, 1e-9)
	assert.InDelta(t, 98, d.StopLoss, 1e-9)
	assert.InDelta(t, 104, d.TakeProfit, 1e-9)
	assert.Equal(t, 1.0, d.Quantity)
}

func TestEngine_DragEntryLeg(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLongPosition))
	f.engine.Click(at(10, 100))
	id := only(t, f.store).ID

	require.True(t, f.engine.PointerDown(geometry.Pt(150, charttest.Y(100))))
	assert.False(t, f.view.ScrollEnabled(), "chart panning is off during a drag")
	st := f.engine.State()
	require.NotNil(t, st.Drag)
	assert.Equal(t, DragTarget{Kind: DragLeg, Leg: drawing.LegEntry}, *st.Drag)
	assert.Equal(t, PhaseDragging, st.Phase)

	f.engine.PointerMove(geometry.Pt(150, charttest.Y(105)))
	f.engine.PointerUp(geometry.Pt(150, charttest.Y(105)))
	assert.True(t, f.view.ScrollEnabled())

	d, ok := f.store.Get(id)
	require.True(t, ok)
	assert.InDelta(t, 105, d.Points[0].Price, 1e-9)
	assert.InDelta(t, 103, d.StopLoss, 1e-9)
	assert.InDelta(t, 109, d.TakeProfit, 1e-9)
	assert.InDelta(t, 2, d.Points[0].Price-d.StopLoss, 1e-9)
	assert.InDelta(t, 4, d.TakeProfit-d.Points[0].Price, 1e-9)
	assert.Equal(t, dp(10, 0).Time, d.Points[0].Time)

	t.Run("Click ending the drag is swallowed", func(t *testing.T) {
		f.engine.Click(geometry.Pt(800, 50))
		assert.Equal(t, id, f.engine.State().SelectedID)
		f.engine.Click(geometry.Pt(800, 50))
		assert.Empty(t, f.engine.State().SelectedID)
	})
}

func TestEngine_DragStopLossLeg(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLongPosition))
	f.engine.Click(at(10, 100))

	// entry y=450, stop loss y=451
	require.True(t, f.engine.PointerDown(geometry.Pt(150, 452)))
	assert.Equal(t, drawing.LegStopLoss, f.engine.State().Drag.Leg)
	f.engine.PointerMove(geometry.Pt(150, charttest.Y(90)))
	f.engine.PointerUp(geometry.Point{})

	d := only(t, f.store)
	assert.InDelta(t, 90, d.StopLoss, 1e-9)
	assert.InDelta(t, 104, d.TakeProfit, 1e-9)
	assert.InDelta(t, 100, d.Points[0].Price, 1e-9)
}

func TestEngine_LockedDrawingDoesNotMove(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
	f.engine.Click(at(10, 600))
	f.engine.Click(at(20, 600))
	require.True(t, f.engine.ToggleLock())
	before := only(t, f.store)
	require.True(t, before.Locked)

	assert.False(t, f.engine.PointerDown(at(15, 600)))
	assert.True(t, f.view.ScrollEnabled())
	f.engine.PointerMove(at(30, 700))
	f.engine.PointerUp(at(30, 700))

	assert.Equal(t, before.Points, only(t, f.store).Points)

	t.Run("Delete is a no-op", func(t *testing.T) {
		assert.False(t, f.engine.Delete())
		f.engine.KeyDown(snap.KeyDelete)
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("Unlocked drawing moves", func(t *testing.T) {
		require.True(t, f.engine.ToggleLock())
		require.True(t, f.engine.PointerDown(at(15, 600)))
		f.engine.PointerMove(at(17, 600))
		f.engine.PointerUp(at(17, 600))
		assert.Equal(t, []drawing.Point{dp(12, 600), dp(22, 600)}, only(t, f.store).Points)
	})
}

func TestEngine_ArityAfterCreation(t *testing.T) {
	for _, kind := range drawing.Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFixture(t, charttest.NewViewport())
			f.engine.SetTool(drawing.ToolFor(kind))
			for i := 0; i < kind.Arity(); i++ {
				require.Equal(t, 0, f.store.Len(), "completed early")
				f.engine.Click(at(10+i*10, 600+float64(i)*40))
			}
			d := only(t, f.store)
			assert.Equal(t, kind, d.Kind)
			assert.Len(t, d.Points, kind.Arity())
			assert.NoError(t, d.Validate())
			assert.Equal(t, drawing.ToolCursor, f.engine.ActiveTool())
		})
	}
}

func TestEngine_TextCreation(t *testing.T) {
	t.Run("Label is stored", func(t *testing.T) {
		f := newFixture(t, charttest.NewViewport())
		f.host.text = "breakout"
		f.engine.SetTool(drawing.ToolFor(drawing.KindText))
		f.engine.Click(at(10, 600))
		assert.Equal(t, "breakout", only(t, f.store).Text)
	})

	for name, host := range map[string]fakeHost{
		"Cancelled": {text: "x", textOK: false},
		"Empty":     {text: "  ", textOK: true},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, charttest.NewViewport())
			f.host.text, f.host.textOK = host.text, host.textOK
			f.engine.SetTool(drawing.ToolFor(drawing.KindText))
			f.engine.Click(at(10, 600))

			assert.Equal(t, 1, f.host.requests)
			assert.Equal(t, 0, f.store.Len())
			st := f.engine.State()
			assert.Equal(t, PhaseIdle, st.Phase)
			assert.Equal(t, drawing.ToolCursor, st.ActiveTool)
			assert.Empty(t, st.Partial)
		})
	}
}

func TestEngine_AngleSnapWhileCreating(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
	f.engine.Click(at(10, 100))
	f.engine.KeyDown(snap.KeyShift)
	f.engine.Click(at(20, 103))

	assert.Equal(t, []drawing.Point{dp(10, 100), dp(20, 100)}, only(t, f.store).Points)
}

func TestEngine_DragControlPointWithShift(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
	f.engine.Click(at(10, 100))
	f.engine.Click(at(20, 120))

	require.True(t, f.engine.PointerDown(at(20, 120)))
	assert.Equal(t, DragTarget{Kind: DragPoint, Index: 1}, *f.engine.State().Drag)

	f.engine.KeyDown(snap.KeyShift)
	f.engine.PointerMove(at(30, 103))
	f.engine.KeyUp(snap.KeyShift)
	f.engine.PointerUp(at(30, 103))

	assert.Equal(t, []drawing.Point{dp(10, 100), dp(30, 100)}, only(t, f.store).Points)
}

func TestEngine_WholeDragRoundsToBars(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
	f.engine.Click(at(10, 600))
	f.engine.Click(at(20, 600))

	start := at(15, 600)
	require.True(t, f.engine.PointerDown(start))
	assert.Equal(t, DragWhole, f.engine.State().Drag.Kind)

	// 1.3 bars right, 10px up (+20 price)
	f.engine.PointerMove(geometry.Pt(start.X+13, start.Y-10))
	assert.Equal(t, []drawing.Point{dp(11, 620), dp(21, 620)}, only(t, f.store).Points)

	// 2.6 bars from the start
	f.engine.PointerMove(geometry.Pt(start.X+26, start.Y-10))
	assert.Equal(t, []drawing.Point{dp(13, 620), dp(23, 620)}, only(t, f.store).Points)

	f.engine.PointerUp(geometry.Point{})
	assert.Equal(t, PhaseSelected, f.engine.State().Phase)
}

func TestEngine_EscapeAndDelete(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())

	t.Run("Escape aborts creation", func(t *testing.T) {
		f.engine.SetTool(drawing.ToolFor(drawing.KindChannel))
		f.engine.Click(at(10, 600))
		f.engine.Click(at(20, 600))
		assert.Equal(t, PhaseBuilding, f.engine.State().Phase)
		f.engine.KeyDown(snap.KeyEscape)
		st := f.engine.State()
		assert.Equal(t, PhaseIdle, st.Phase)
		assert.Empty(t, st.Partial)
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("Escape clears selection", func(t *testing.T) {
		f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
		f.engine.Click(at(10, 600))
		require.NotEmpty(t, f.engine.State().SelectedID)
		f.engine.KeyDown(snap.KeyEscape)
		assert.Empty(t, f.engine.State().SelectedID)
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("Backspace deletes the selection", func(t *testing.T) {
		f.engine.Click(at(50, 600))
		require.NotEmpty(t, f.engine.State().SelectedID)
		f.engine.KeyDown(snap.KeyBackspace)
		assert.Equal(t, 0, f.store.Len())
		assert.Empty(t, f.engine.State().SelectedID)
	})
}

func TestEngine_SelectionFollowsStore(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(at(10, 600))
	id := f.engine.State().SelectedID
	f.engine.PointerMove(at(40, 600))
	require.Equal(t, id, f.engine.State().HoveredID)

	f.store.Remove(id)
	st := f.engine.State()
	assert.Empty(t, st.SelectedID)
	assert.Empty(t, st.HoveredID)
}

func TestEngine_DoubleClickEditor(t *testing.T) {
	newLine := func(t *testing.T) *fixture {
		f := newFixture(t, charttest.NewViewport())
		f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
		f.engine.Click(at(10, 600))
		f.engine.Click(at(20, 600))
		return f
	}

	t.Run("Update", func(t *testing.T) {
		f := newLine(t)
		f.host.edit = func(d drawing.Drawing) (drawing.Drawing, EditResult) {
			d.Color = "#ff0000"
			d.Points[1].Price = 700
			return d, EditUpdated
		}
		f.engine.DoubleClick(at(15, 600))
		d := only(t, f.store)
		assert.Equal(t, "#ff0000", d.Color)
		assert.Equal(t, 700.0, d.Points[1].Price)
	})

	t.Run("Locked takes style only", func(t *testing.T) {
		f := newLine(t)
		require.True(t, f.engine.ToggleLock())
		f.host.edit = func(d drawing.Drawing) (drawing.Drawing, EditResult) {
			d.Color = "#00ff00"
			d.Width = 4
			d.Points[1].Price = 700
			return d, EditUpdated
		}
		f.engine.DoubleClick(at(15, 600))
		d := only(t, f.store)
		assert.Equal(t, "#00ff00", d.Color)
		assert.Equal(t, 4.0, d.Width)
		assert.Equal(t, 600.0, d.Points[1].Price)
	})

	t.Run("Delete", func(t *testing.T) {
		f := newLine(t)
		f.host.edit = func(d drawing.Drawing) (drawing.Drawing, EditResult) { return d, EditDeleted }
		f.engine.DoubleClick(at(15, 600))
		assert.Equal(t, 0, f.store.Len())
	})

	t.Run("Locked delete is rejected", func(t *testing.T) {
		f := newLine(t)
		require.True(t, f.engine.ToggleLock())
		f.host.edit = func(d drawing.Drawing) (drawing.Drawing, EditResult) { return d, EditDeleted }
		f.engine.DoubleClick(at(15, 600))
		assert.Equal(t, 1, f.store.Len())
	})

	t.Run("Nothing under the pointer", func(t *testing.T) {
		f := newLine(t)
		called := false
		f.host.edit = func(d drawing.Drawing) (drawing.Drawing, EditResult) {
			called = true
			return d, EditDeleted
		}
		f.engine.DoubleClick(geometry.Pt(900, 20))
		assert.False(t, called)
	})
}

func TestEngine_Duplicate(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(at(10, 600))
	orig := only(t, f.store)

	id, ok := f.engine.Duplicate()
	require.True(t, ok)
	assert.NotEqual(t, orig.ID, id)
	assert.Equal(t, id, f.engine.State().SelectedID)

	c, ok := f.store.Get(id)
	require.True(t, ok)
	assert.InDelta(t, 600.6, c.Points[0].Price, 1e-9)
}

func TestEngine_ClickDuringReplay(t *testing.T) {
	v := charttest.NewViewport()
	v.SetReplay(50)
	f := newFixture(t, v)
	f.engine.SetTool(drawing.ToolFor(drawing.KindVerticalLine))

	x, _ := v.LogicalToCoordinate(55.2)
	f.engine.Click(geometry.Pt(x, charttest.Y(600)))

	assert.Equal(t, charttest.TimeOf(55), only(t, f.store).Points[0].Time)
}

func TestEngine_UnresolvableClickIsSkipped(t *testing.T) {
	f := newFixture(t, chart.NewViewport(nil, charttest.Interval, 100, 100))
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(geometry.Pt(10, 10))

	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, drawing.ToolFor(drawing.KindHorizontalLine), f.engine.ActiveTool())
	assert.Equal(t, PhaseIdle, f.engine.State().Phase)
}

func TestEngine_AttachOnce(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.Attach(f.view)
	f.engine.Attach(f.view)

	var states []State
	f.engine.OnChange(func(s State) { states = append(states, s) })

	f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
	f.view.Click(at(10, 600))
	assert.Len(t, f.engine.State().Partial, 1)

	f.view.Move(at(20, 650))
	require.NotNil(t, f.engine.State().Pointer)
	assert.Equal(t, dp(20, 650), *f.engine.State().Pointer)

	before := len(states)
	f.view.ScrollBars(1)
	assert.Len(t, states, before+1)
}

func TestEngine_CursorAndTransitions(t *testing.T) {
	var cursors []Cursor
	f := newFixture(t, charttest.NewViewport(), WithCursorSink(CursorFunc(func(c Cursor) {
		cursors = append(cursors, c)
	})))

	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(at(10, 600))
	f.engine.PointerMove(at(40, 600))
	f.engine.PointerMove(at(40, 900))

	assert.Equal(t, []Cursor{CursorCrosshair, CursorDefault, CursorMove, CursorDefault}, cursors)

	trs := f.engine.Transitions()
	require.NotEmpty(t, trs)
	last := trs[len(trs)-1]
	assert.Equal(t, PhaseIdle, last.From)
	assert.Equal(t, PhaseSelected, last.To)
	assert.Equal(t, "drawing created", last.Condition)

	m := f.engine.Metrics()
	assert.Equal(t, PhaseSelected, m.Current)
	assert.Equal(t, 1, m.Counts[PhaseSelected])
}

func TestEngine_SwitchStore(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(at(10, 600))
	old := f.store

	eth := store.New("ETHUSDT")
	f.engine.SwitchStore(eth)
	st := f.engine.State()
	assert.Empty(t, st.SelectedID)
	assert.Equal(t, "ETHUSDT", st.Symbol)

	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(at(10, 600))
	assert.Equal(t, 1, eth.Len())
	assert.Equal(t, 1, old.Len())

	// the old store no longer drives the engine
	id := f.engine.State().SelectedID
	old.Clear()
	assert.Equal(t, id, f.engine.State().SelectedID)

	t.Run("Detach", func(t *testing.T) {
		f.engine.Detach()
		eth.Clear()
		assert.Equal(t, id, f.engine.State().SelectedID)
	})
}

func TestEngine_SetToolResets(t *testing.T) {
	f := newFixture(t, charttest.NewViewport())
	f.engine.SetTool(drawing.ToolFor(drawing.KindHorizontalLine))
	f.engine.Click(at(10, 600))
	f.engine.SetTool(drawing.ToolFor(drawing.KindLine))
	f.engine.Click(at(10, 700))

	f.engine.SetTool(drawing.ToolCursor)
	st := f.engine.State()
	assert.Empty(t, st.Partial)
	assert.Empty(t, st.SelectedID)

	f.engine.SetTool("bogus")
	assert.Equal(t, drawing.ToolCursor, f.engine.ActiveTool())
}
