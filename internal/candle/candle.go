// Package candle
package candle

import (
	"errors"
	"sort"
	"time"
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// Time returns the candle's time-axis key (unix seconds).
func (c *Candle) Time() int64 {
	return c.Timestamp.Unix()
}

// Levels returns open, high, low and close in that order.
func (c *Candle) Levels() [4]float64 {
	return [4]float64{c.Open, c.High, c.Low, c.Close}
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// IndexAtOrBefore returns the index of the last candle whose time is <= t.
// Returns -1 when t precedes every candle. Candles must be sorted ascending.
func IndexAtOrBefore(candles []Candle, t int64) int {
	i := sort.Search(len(candles), func(i int) bool {
		return candles[i].Time() > t
	})
	return i - 1
}

// IndexOf returns the index of the candle with exactly time t, or -1.
func IndexOf(candles []Candle, t int64) int {
	i := IndexAtOrBefore(candles, t)
	if i >= 0 && candles[i].Time() == t {
		return i
	}
	return -1
}

// PriceRange returns the lowest low and highest high of the candles.
func PriceRange(candles []Candle) (low, high float64, ok bool) {
	if len(candles) == 0 {
		return 0, 0, false
	}
	low, high = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		if c.Low < low {
			low = c.Low
		}
		if c.High > high {
			high = c.High
		}
	}
	return low, high, true
}

// SortByTime sorts candles by timestamp ascending.
func SortByTime(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}
