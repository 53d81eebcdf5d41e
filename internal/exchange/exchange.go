// Package exchange
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/chart-drawings/internal/candle"
)

var ErrNoCandles = errors.New("no candles available")

// CandleSource supplies the series a chart renders.
type CandleSource interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]candle.Candle, error)
	FetchLatestCandles(ctx context.Context, symbol, interval string, count int) ([]candle.Candle, error)
}

// NormalizeSymbol converts e.g. btc-usdt to BTCUSDT
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "-", ""))
}

// clean drops invalid candles and returns the rest sorted by time.
func clean(cs []candle.Candle) []candle.Candle {
	out := cs[:0]
	for i := range cs {
		if err := cs[i].Validate(); err != nil {
			continue
		}
		out = append(out, cs[i])
	}
	candle.SortByTime(out)
	return out
}
