// Package chart describes the candlestick chart the drawing engine is embedded in.
package chart

import (
	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/geometry"
)

// Chart is the set of axis primitives the engine consumes. Every lookup may
// fail (window edges, replay slices, re-layout) and reports that through ok.
type Chart interface {
	PriceToCoordinate(price float64) (y float64, ok bool)
	CoordinateToPrice(y float64) (price float64, ok bool)
	TimeToCoordinate(t int64) (x float64, ok bool)
	CoordinateToTime(x float64) (t int64, ok bool)
	CoordinateToLogical(x float64) (logical float64, ok bool)
	LogicalToCoordinate(logical float64) (x float64, ok bool)
	DataByIndex(i int) (candle.Candle, bool)

	// Size is the pane size in pixels.
	Size() (width, height float64)
	SetScrollHandlingEnabled(enabled bool)
}

// Events are the chart subscriptions the engine attaches to once.
type Events interface {
	SubscribeClick(func(geometry.Point))
	SubscribePointerMove(func(geometry.Point))
	SubscribeDoubleClick(func(geometry.Point))
	SubscribeVisibleRangeChange(func())
}
