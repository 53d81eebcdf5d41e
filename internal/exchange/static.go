package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/tfutils"
)

// StaticSource serves candles held in memory, e.g. loaded from a CSV file.
type StaticSource struct {
	mu     sync.RWMutex
	series map[string][]candle.Candle
}

func NewStaticSource() *StaticSource {
	return &StaticSource{series: make(map[string][]candle.Candle)}
}

func seriesKey(symbol, interval string) string {
	return NormalizeSymbol(symbol) + "|" + interval
}

func (s *StaticSource) Name() string { return "static" }

// Put replaces the series of symbol and interval.
func (s *StaticSource) Put(symbol, interval string, cs []candle.Candle) {
	cp := make([]candle.Candle, len(cs))
	copy(cp, cs)
	cp = clean(cp)
	s.mu.Lock()
	s.series[seriesKey(symbol, interval)] = cp
	s.mu.Unlock()
}

func (s *StaticSource) FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]candle.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	cs, ok := s.series[seriesKey(symbol, interval)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", NormalizeSymbol(symbol), interval, ErrNoCandles)
	}
	var out []candle.Candle
	for _, c := range cs {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *StaticSource) FetchLatestCandles(ctx context.Context, symbol, interval string, count int) ([]candle.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	cs, ok := s.series[seriesKey(symbol, interval)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", NormalizeSymbol(symbol), interval, ErrNoCandles)
	}
	if count > 0 && len(cs) > count {
		cs = cs[len(cs)-count:]
	}
	out := make([]candle.Candle, len(cs))
	copy(out, cs)
	return out, nil
}

// ReadCSV parses candles from rows of timestamp,open,high,low,close[,volume].
// The timestamp is unix seconds or RFC3339. A non-numeric first row is taken
// as a header and skipped.
func ReadCSV(r io.Reader, symbol, interval string) ([]candle.Candle, error) {
	if !tfutils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []candle.Candle
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("csv line %d: expected at least 5 fields, got %d", line, len(row))
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		var vals [5]float64
		for i := 1; i < len(row) && i <= 5; i++ {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d field %d: %w", line, i+1, err)
			}
			vals[i-1] = v
		}
		out = append(out, candle.Candle{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
			Symbol:    NormalizeSymbol(symbol),
			Timeframe: interval,
			Source:    "csv",
		})
	}
	return clean(out), nil
}

func parseTimestamp(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC(), nil
}
