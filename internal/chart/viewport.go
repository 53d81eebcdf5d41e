package chart

import (
	"math"
	"sync"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/geometry"
)

const (
	defaultVisibleBars = 100
	priceMarginRatio   = 0.1
)

// Viewport is a headless chart over a candle series. Logical index i is the
// i-th rendered candle; in replay mode only a prefix of the series is rendered.
type Viewport struct {
	mu sync.RWMutex

	series   []candle.Candle
	interval string
	replay   int // rendered prefix length; -1 renders the whole series

	from, to      float64 // visible logical range
	width, height float64

	// fixed price scale; autoscale to visible candles when unset
	priceLo, priceHi float64
	fixedPrice       bool

	scrollEnabled bool

	clickHandlers       []func(geometry.Point)
	moveHandlers        []func(geometry.Point)
	doubleClickHandlers []func(geometry.Point)
	rangeHandlers       []func()
}

// NewViewport creates a viewport showing the most recent bars of the series.
func NewViewport(series []candle.Candle, interval string, width, height float64) *Viewport {
	s := make([]candle.Candle, len(series))
	copy(s, series)
	candle.SortByTime(s)

	v := &Viewport{
		series:        s,
		interval:      interval,
		replay:        -1,
		width:         width,
		height:        height,
		scrollEnabled: true,
	}
	v.fitLocked()
	return v
}

func (v *Viewport) fitLocked() {
	n := float64(len(v.rendered()))
	bars := math.Min(n, defaultVisibleBars)
	if bars < 1 {
		bars = 1
	}
	v.to = n - 0.5
	v.from = v.to - bars
}

func (v *Viewport) rendered() []candle.Candle {
	if v.replay >= 0 && v.replay < len(v.series) {
		return v.series[:v.replay]
	}
	return v.series
}

// -------- Chart --------

func (v *Viewport) LogicalToCoordinate(logical float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.logicalToX(logical)
}

func (v *Viewport) logicalToX(logical float64) (float64, bool) {
	span := v.to - v.from
	if span <= 0 || v.width <= 0 {
		return 0, false
	}
	return (logical - v.from) / span * v.width, true
}

func (v *Viewport) CoordinateToLogical(x float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.xToLogical(x)
}

func (v *Viewport) xToLogical(x float64) (float64, bool) {
	span := v.to - v.from
	if span <= 0 || v.width <= 0 {
		return 0, false
	}
	return v.from + x/v.width*span, true
}

// TimeToCoordinate only resolves times of rendered candles.
func (v *Viewport) TimeToCoordinate(t int64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i := candle.IndexOf(v.rendered(), t)
	if i < 0 {
		return 0, false
	}
	return v.logicalToX(float64(i))
}

// CoordinateToTime resolves x to the time of the rendered candle under it.
func (v *Viewport) CoordinateToTime(x float64) (int64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	l, ok := v.xToLogical(x)
	if !ok {
		return 0, false
	}
	i := int(math.Round(l))
	rendered := v.rendered()
	if i < 0 || i >= len(rendered) {
		return 0, false
	}
	return rendered[i].Time(), true
}

func (v *Viewport) PriceToCoordinate(price float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lo, hi, ok := v.priceRange()
	if !ok {
		return 0, false
	}
	return (hi - price) / (hi - lo) * v.height, true
}

func (v *Viewport) CoordinateToPrice(y float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lo, hi, ok := v.priceRange()
	if !ok {
		return 0, false
	}
	return hi - y/v.height*(hi-lo), true
}

// SetPriceRange pins the price scale to [lo, hi].
func (v *Viewport) SetPriceRange(lo, hi float64) {
	if hi <= lo {
		return
	}
	v.mu.Lock()
	v.priceLo, v.priceHi, v.fixedPrice = lo, hi, true
	v.mu.Unlock()
	v.fireRangeChange()
}

// AutoScale returns the price scale to fitting the visible candles.
func (v *Viewport) AutoScale() {
	v.mu.Lock()
	v.fixedPrice = false
	v.mu.Unlock()
	v.fireRangeChange()
}

// priceRange auto-scales to the rendered candles inside the visible range.
func (v *Viewport) priceRange() (float64, float64, bool) {
	if v.height <= 0 {
		return 0, 0, false
	}
	if v.fixedPrice {
		return v.priceLo, v.priceHi, true
	}
	rendered := v.rendered()
	first := int(math.Max(0, math.Ceil(v.from)))
	last := int(math.Min(float64(len(rendered)-1), math.Floor(v.to)))
	if first > last {
		return 0, 0, false
	}
	lo, hi, ok := candle.PriceRange(rendered[first : last+1])
	if !ok {
		return 0, 0, false
	}
	margin := (hi - lo) * priceMarginRatio
	if margin == 0 {
		margin = math.Max(math.Abs(hi)*priceMarginRatio, 1)
	}
	return lo - margin, hi + margin, true
}

func (v *Viewport) DataByIndex(i int) (candle.Candle, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rendered := v.rendered()
	if i < 0 || i >= len(rendered) {
		return candle.Candle{}, false
	}
	return rendered[i], true
}

func (v *Viewport) Size() (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

func (v *Viewport) SetScrollHandlingEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollEnabled = enabled
}

// ScrollEnabled reports whether native pan/scroll is currently active.
func (v *Viewport) ScrollEnabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scrollEnabled
}

// -------- Data window --------

// Interval returns the series interval string.
func (v *Viewport) Interval() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.interval
}

// VisibleData returns the candles currently handed to the chart (the replay
// prefix while replaying).
func (v *Viewport) VisibleData() []candle.Candle {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rendered := v.rendered()
	out := make([]candle.Candle, len(rendered))
	copy(out, rendered)
	return out
}

// Series returns the full series.
func (v *Viewport) Series() []candle.Candle {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]candle.Candle, len(v.series))
	copy(out, v.series)
	return out
}

// -------- Pan / zoom / replay --------

// VisibleLogicalRange returns the visible logical range.
func (v *Viewport) VisibleLogicalRange() (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.from, v.to
}

// SetVisibleLogicalRange sets the visible logical range.
func (v *Viewport) SetVisibleLogicalRange(from, to float64) {
	if to <= from {
		return
	}
	v.mu.Lock()
	v.from, v.to = from, to
	v.mu.Unlock()
	v.fireRangeChange()
}

// ScrollBars pans the view by n bars; positive values move toward newer bars.
// Ignored while scroll handling is disabled.
func (v *Viewport) ScrollBars(n float64) {
	v.mu.Lock()
	if !v.scrollEnabled {
		v.mu.Unlock()
		return
	}
	v.from += n
	v.to += n
	v.mu.Unlock()
	v.fireRangeChange()
}

// Zoom scales the visible range around its right edge. factor > 1 zooms out.
func (v *Viewport) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	v.mu.Lock()
	if !v.scrollEnabled {
		v.mu.Unlock()
		return
	}
	span := (v.to - v.from) * factor
	if span < 2 {
		span = 2
	}
	v.from = v.to - span
	v.mu.Unlock()
	v.fireRangeChange()
}

// SetSize resizes the pane.
func (v *Viewport) SetSize(width, height float64) {
	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()
	v.fireRangeChange()
}

// SetReplay renders only the first n candles; n < 0 leaves replay mode.
func (v *Viewport) SetReplay(n int) {
	v.mu.Lock()
	if n > len(v.series) {
		n = len(v.series)
	}
	v.replay = n
	v.fitLocked()
	v.mu.Unlock()
	v.fireRangeChange()
}

// StepReplay reveals n more candles, keeping the view pinned to the newest bar.
func (v *Viewport) StepReplay(n int) {
	v.mu.Lock()
	if v.replay < 0 {
		v.mu.Unlock()
		return
	}
	v.replay += n
	if v.replay > len(v.series) {
		v.replay = len(v.series)
	}
	if v.replay < 0 {
		v.replay = 0
	}
	span := v.to - v.from
	v.to = float64(v.replay) - 0.5
	v.from = v.to - span
	v.mu.Unlock()
	v.fireRangeChange()
}

// Replaying reports whether replay mode is active and the rendered prefix length.
func (v *Viewport) Replaying() (bool, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.replay >= 0, len(v.rendered())
}

// -------- Events --------

func (v *Viewport) SubscribeClick(fn func(geometry.Point)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clickHandlers = append(v.clickHandlers, fn)
}

func (v *Viewport) SubscribePointerMove(fn func(geometry.Point)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.moveHandlers = append(v.moveHandlers, fn)
}

func (v *Viewport) SubscribeDoubleClick(fn func(geometry.Point)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doubleClickHandlers = append(v.doubleClickHandlers, fn)
}

func (v *Viewport) SubscribeVisibleRangeChange(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rangeHandlers = append(v.rangeHandlers, fn)
}

// Click delivers a click to subscribers.
func (v *Viewport) Click(p geometry.Point) {
	v.mu.RLock()
	hs := append([]func(geometry.Point){}, v.clickHandlers...)
	v.mu.RUnlock()
	for _, h := range hs {
		h(p)
	}
}

// Move delivers a pointer move to subscribers.
func (v *Viewport) Move(p geometry.Point) {
	v.mu.RLock()
	hs := append([]func(geometry.Point){}, v.moveHandlers...)
	v.mu.RUnlock()
	for _, h := range hs {
		h(p)
	}
}

// DoubleClick delivers a double click to subscribers.
func (v *Viewport) DoubleClick(p geometry.Point) {
	v.mu.RLock()
	hs := append([]func(geometry.Point){}, v.doubleClickHandlers...)
	v.mu.RUnlock()
	for _, h := range hs {
		h(p)
	}
}

func (v *Viewport) fireRangeChange() {
	v.mu.RLock()
	hs := append([]func(){}, v.rangeHandlers...)
	v.mu.RUnlock()
	for _, h := range hs {
		h()
	}
}
