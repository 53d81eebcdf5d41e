package exchange

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wallex "github.com/wallexchange/wallex-go"

	"github.com/amirphl/chart-drawings/internal/candle"
)

type fakeClient struct {
	failures   int
	calls      int
	symbol     string
	resolution string
	candles    []*wallex.Candle
}

func (f *fakeClient) Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error) {
	f.calls++
	f.symbol, f.resolution = symbol, resolution
	if f.calls <= f.failures {
		return nil, errors.New("503 service unavailable")
	}
	return f.candles, nil
}

func newTestWallex(c candleClient, retries uint64) *WallexExchange {
	return &WallexExchange{
		client:     c,
		maxRetries: retries,
		newBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func wc(offset time.Duration, o, h, l, c string) *wallex.Candle {
	return &wallex.Candle{
		Timestamp: t0.Add(offset),
		Open:      wallex.Number(o),
		High:      wallex.Number(h),
		Low:       wallex.Number(l),
		Close:     wallex.Number(c),
		Volume:    wallex.Number("1.5"),
	}
}

func TestResolution(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"1m", "1", false},
		{"15m", "15", false},
		{"1h", "60", false},
		{"4h", "240", false},
		{"1d", "1D", false},
		{"1w", "7D", false},
		{"30s", "", true},
		{"bogus", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Resolution(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestWallexExchange_FetchCandles(t *testing.T) {
	ctx := context.Background()

	t.Run("Converts, drops invalid and sorts", func(t *testing.T) {
		client := &fakeClient{candles: []*wallex.Candle{
			wc(time.Hour, "101", "110", "100", "105"),
			wc(0, "100", "105", "95", "101"),
			wc(2*time.Hour, "105", "100", "110", "101"), // high < low
			nil,
		}}
		w := newTestWallex(client, 0)

		got, err := w.FetchCandles(ctx, "btc-usdt", "1h", t0, t0.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "BTCUSDT", client.symbol)
		assert.Equal(t, "60", client.resolution)
		require.Len(t, got, 2)
		assert.Equal(t, t0, got[0].Timestamp)
		assert.Equal(t, candle.Candle{
			Timestamp: t0.Add(time.Hour), Open: 101, High: 110, Low: 100, Close: 105, Volume: 1.5,
			Symbol: "BTCUSDT", Timeframe: "1h", Source: "wallex",
		}, got[1])
	})

	t.Run("Retries transient errors", func(t *testing.T) {
		client := &fakeClient{failures: 2, candles: []*wallex.Candle{wc(0, "100", "105", "95", "101")}}
		got, err := newTestWallex(client, 3).FetchCandles(ctx, "BTCUSDT", "1m", t0, t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, 3, client.calls)
	})

	t.Run("Gives up after the retry budget", func(t *testing.T) {
		client := &fakeClient{failures: 10}
		_, err := newTestWallex(client, 2).FetchCandles(ctx, "BTCUSDT", "1m", t0, t0.Add(time.Minute))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
		assert.Equal(t, 3, client.calls)
	})

	t.Run("Invalid interval", func(t *testing.T) {
		client := &fakeClient{}
		_, err := newTestWallex(client, 0).FetchCandles(ctx, "BTCUSDT", "7x", t0, t0)
		assert.Error(t, err)
		assert.Zero(t, client.calls)
	})

	t.Run("Latest trims to count", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Minute)
		client := &fakeClient{candles: []*wallex.Candle{
			{Timestamp: now.Add(-2 * time.Minute), Open: "1", High: "2", Low: "1", Close: "2"},
			{Timestamp: now.Add(-time.Minute), Open: "2", High: "3", Low: "2", Close: "3"},
			{Timestamp: now, Open: "3", High: "4", Low: "3", Close: "4"},
		}}
		got, err := newTestWallex(client, 0).FetchLatestCandles(ctx, "BTCUSDT", "1m", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 3.0, got[1].Open)
	})
}

func TestStaticSource(t *testing.T) {
	ctx := context.Background()
	s := NewStaticSource()
	var cs []candle.Candle
	for i := 0; i < 5; i++ {
		cs = append(cs, candle.Candle{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: 10, High: 12, Low: 9, Close: 11})
	}
	s.Put("btc-usdt", "1h", cs)

	got, err := s.FetchCandles(ctx, "BTCUSDT", "1h", t0.Add(time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	latest, err := s.FetchLatestCandles(ctx, "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, t0.Add(4*time.Hour), latest[1].Timestamp)

	_, err = s.FetchLatestCandles(ctx, "ETHUSDT", "1h", 2)
	assert.ErrorIs(t, err, ErrNoCandles)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.FetchCandles(cancelled, "BTCUSDT", "1h", t0, t0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadCSV(t *testing.T) {
	t.Run("Header, unix and RFC3339 timestamps", func(t *testing.T) {
		in := strings.Join([]string{
			"time,open,high,low,close,volume",
			"1704070800,101,110,100,105,2",
			"2024-01-01T00:00:00Z,100,105,95,101,1",
		}, "\n")
		got, err := ReadCSV(strings.NewReader(in), "btc-usdt", "1h")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, t0, got[0].Timestamp)
		assert.Equal(t, 105.0, got[1].Close)
		assert.Equal(t, 2.0, got[1].Volume)
		assert.Equal(t, "BTCUSDT", got[1].Symbol)
	})

	t.Run("Volume is optional", func(t *testing.T) {
		got, err := ReadCSV(strings.NewReader("1704067200,100,105,95,101\n"), "BTCUSDT", "1h")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Zero(t, got[0].Volume)
	})

	t.Run("Bad rows", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("1704067200,100,105\n"), "BTCUSDT", "1h")
		assert.Error(t, err)
		_, err = ReadCSV(strings.NewReader("1704067200,100,105,95,101\nlater,1,2,1,2\n"), "BTCUSDT", "1h")
		assert.Error(t, err)
		_, err = ReadCSV(strings.NewReader("1704067200,100,x,95,101\n"), "BTCUSDT", "1h")
		assert.Error(t, err)
		_, err = ReadCSV(strings.NewReader(""), "BTCUSDT", "nope")
		assert.Error(t, err)
	})
}
