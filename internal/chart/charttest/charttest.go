// Package charttest builds deterministic charts for tests.
//
// The default viewport is 1000x500 px showing 100 hourly bars with the price
// scale pinned to [0, 1000]: bar i is centered at x = (i+0.5)*10 and price p is
// at y = 500 - p/2.
package charttest

import (
	"time"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/chart"
)

const (
	Width    = 1000.0
	Height   = 500.0
	Interval = "1h"
	Bars     = 100
)

// Start is the time of bar 0.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Series returns n hourly candles: bar i opens at 400+i, closes at 405+i,
// with high 420+i and low 390+i.
func Series(n int) []candle.Candle {
	out := make([]candle.Candle, n)
	for i := range out {
		base := 400 + float64(i)
		out[i] = candle.Candle{
			Timestamp: Start.Add(time.Duration(i) * time.Hour),
			Open:      base,
			High:      base + 20,
			Low:       base - 10,
			Close:     base + 5,
			Volume:    1,
			Symbol:    "BTCUSDT",
			Timeframe: Interval,
			Source:    "test",
		}
	}
	return out
}

// TimeOf returns the time key of bar i.
func TimeOf(i int) int64 {
	return Start.Add(time.Duration(i) * time.Hour).Unix()
}

// X returns the screen x of bar i on the default viewport.
func X(i int) float64 {
	return (float64(i) + 0.5) * 10
}

// Y returns the screen y of price p on the default viewport.
func Y(p float64) float64 {
	return Height - p/2
}

// NewViewport returns the default viewport over Series(Bars).
func NewViewport() *chart.Viewport {
	v := chart.NewViewport(Series(Bars), Interval, Width, Height)
	v.SetPriceRange(0, 1000)
	return v
}
