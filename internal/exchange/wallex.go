package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	wallex "github.com/wallexchange/wallex-go"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/tfutils"
	"github.com/amirphl/chart-drawings/internal/utils"
)

// candleClient is the part of the wallex client the source uses.
type candleClient interface {
	Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error)
}

type WallexExchange struct {
	client     candleClient
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func NewWallexExchange(apiKey string, maxRetries uint64) *WallexExchange {
	return &WallexExchange{
		client:     wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 5 * time.Minute
			return b
		},
	}
}

func (w *WallexExchange) Name() string {
	return "wallex"
}

// Resolution converts an interval to the wallex resolution: minutes below a
// day, otherwise days with a D suffix.
func Resolution(interval string) (string, error) {
	secs, err := tfutils.ParseInterval(interval)
	if err != nil {
		return "", err
	}
	const day = 24 * 60 * 60
	if secs >= day && secs%day == 0 {
		return fmt.Sprintf("%dD", secs/day), nil
	}
	if secs%60 != 0 {
		return "", fmt.Errorf("unsupported interval for wallex: %s", interval)
	}
	return strconv.FormatInt(secs/60, 10), nil
}

// retry runs fn with exponential backoff until it succeeds, the retry budget
// is spent or ctx is done.
func (w *WallexExchange) retry(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), w.maxRetries), ctx)
	return backoff.RetryNotify(fn, policy, func(err error, d time.Duration) {
		utils.GetLogger().Warnf("Exchange | %s retry failed: %v. Backing off for %v", w.Name(), err, d)
	})
}

func (w *WallexExchange) FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]candle.Candle, error) {
	resolution, err := Resolution(interval)
	if err != nil {
		return nil, fmt.Errorf("unsupported interval: %w", err)
	}
	normalizedSymbol := NormalizeSymbol(symbol)

	var wallexCandles []*wallex.Candle
	err = w.retry(ctx, func() error {
		var err error
		wallexCandles, err = w.client.Candles(normalizedSymbol, resolution, start, end)
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("FetchCandles failed: %w", err)
	}

	candles := make([]candle.Candle, 0, len(wallexCandles))
	for _, wc := range wallexCandles {
		if wc == nil {
			continue
		}
		open, _ := strconv.ParseFloat(string(wc.Open), 64)
		high, _ := strconv.ParseFloat(string(wc.High), 64)
		low, _ := strconv.ParseFloat(string(wc.Low), 64)
		close, _ := strconv.ParseFloat(string(wc.Close), 64)
		volume, _ := strconv.ParseFloat(string(wc.Volume), 64)

		candles = append(candles, candle.Candle{
			Timestamp: wc.Timestamp.UTC().Truncate(time.Minute),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			Symbol:    normalizedSymbol,
			Timeframe: interval,
			Source:    w.Name(),
		})
	}

	candles = clean(candles)
	utils.GetLogger().Debugf("Exchange | %s fetched %d %s %s candles", w.Name(), len(candles), normalizedSymbol, interval)
	return candles, nil
}

// FetchLatestCandles fetches the most recent candles for a symbol and interval
func (w *WallexExchange) FetchLatestCandles(ctx context.Context, symbol, interval string, count int) ([]candle.Candle, error) {
	duration := tfutils.GetIntervalDuration(interval)
	if duration == 0 {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}
	end := time.Now().UTC()
	start := end.Add(-duration * time.Duration(count))

	candles, err := w.FetchCandles(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}
