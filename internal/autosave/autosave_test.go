package autosave

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/store"
)

// flakyStorage fails the first failures saves, then delegates to memory.
type flakyStorage struct {
	*db.MemoryStorage
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStorage) SaveDrawings(ctx context.Context, user, symbol string, ds []drawing.Drawing) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return f.MemoryStorage.SaveDrawings(ctx, user, symbol, ds)
}

func newSaver(t *testing.T, storage db.Storage, retries uint64, schedule string) *Saver {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(storage, config.AutosaveConfig{Schedule: schedule, MaxRetries: retries},
		WithLogger(l),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }))
}

func hline(price float64) drawing.Drawing {
	return drawing.New(drawing.KindHorizontalLine, []drawing.Point{{Time: 1704067200, Price: price}})
}

func TestSaver_FlushesDirtyStores(t *testing.T) {
	ctx := context.Background()
	mem := db.NewMemory()
	s := newSaver(t, mem, 3, "@every 1h")

	book := store.NewBook()
	s.Watch("alice", book)
	btc := book.Switch("BTCUSDT")
	eth := book.Switch("ETHUSDT")

	assert.Empty(t, s.Pending(), "creating stores is not a mutation")

	require.NoError(t, btc.Add(hline(45000)))
	require.NoError(t, btc.Add(hline(46000)))
	require.NoError(t, eth.Add(hline(2500)))
	assert.Equal(t, []Key{{"alice", "BTCUSDT"}, {"alice", "ETHUSDT"}}, s.Pending())

	require.NoError(t, s.Flush(ctx))
	assert.Empty(t, s.Pending())
	assert.Equal(t, Stats{Saved: 2}, s.Stats())

	got, err := mem.LoadDrawings(ctx, "alice", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, btc.List(), got)

	t.Run("Clear saves an empty list", func(t *testing.T) {
		eth.Clear()
		require.NoError(t, s.Flush(ctx))
		symbols, err := mem.ListSymbols(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"BTCUSDT"}, symbols)
	})
}

func TestSaver_Retries(t *testing.T) {
	ctx := context.Background()

	t.Run("Recovers within the retry budget", func(t *testing.T) {
		flaky := &flakyStorage{MemoryStorage: db.NewMemory(), failures: 2}
		s := newSaver(t, flaky, 3, "@every 1h")
		st := store.New("BTCUSDT")
		require.NoError(t, st.Add(hline(45000)))
		s.MarkDirty(Key{"alice", "BTCUSDT"}, st)

		require.NoError(t, s.Flush(ctx))
		assert.Equal(t, 3, flaky.calls)
		assert.Equal(t, Stats{Saved: 1}, s.Stats())
	})

	t.Run("Requeues after exhausting retries", func(t *testing.T) {
		flaky := &flakyStorage{MemoryStorage: db.NewMemory(), failures: 5}
		s := newSaver(t, flaky, 1, "@every 1h")
		st := store.New("BTCUSDT")
		s.MarkDirty(Key{"alice", "BTCUSDT"}, st)

		err := s.Flush(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alice/BTCUSDT")
		assert.Equal(t, 2, flaky.calls)
		assert.Equal(t, Stats{Failed: 1, Pending: 1}, s.Stats())

		// calls 3..5 fail, the 6th succeeds
		require.Error(t, s.Flush(ctx))
		require.NoError(t, s.Flush(ctx))
		assert.Equal(t, 6, flaky.calls)
		assert.Equal(t, Stats{Saved: 1, Failed: 2}, s.Stats())
	})

	t.Run("Invalid key is dropped without retry", func(t *testing.T) {
		flaky := &flakyStorage{MemoryStorage: db.NewMemory()}
		s := newSaver(t, flaky, 2, "@every 1h")
		s.MarkDirty(Key{"", "BTCUSDT"}, store.New("BTCUSDT"))

		err := s.Flush(ctx)
		assert.ErrorIs(t, err, db.ErrInvalidKey)
		assert.Equal(t, 1, flaky.calls)
		assert.Equal(t, Stats{Failed: 1}, s.Stats())
	})
}

func TestSaver_Schedule(t *testing.T) {
	t.Run("Invalid schedule", func(t *testing.T) {
		s := newSaver(t, db.NewMemory(), 0, "every now and then")
		assert.Error(t, s.Start(context.Background()))
	})

	t.Run("Flushes on schedule and on stop", func(t *testing.T) {
		ctx := context.Background()
		mem := db.NewMemory()
		s := newSaver(t, mem, 0, "* * * * * *")
		book := store.NewBook()
		s.Watch("alice", book)
		require.NoError(t, s.Start(ctx))

		require.NoError(t, book.Switch("BTCUSDT").Add(hline(45000)))
		require.Eventually(t, func() bool { return s.Stats().Saved == 1 }, 5*time.Second, 20*time.Millisecond)

		require.NoError(t, book.Switch("ETHUSDT").Add(hline(2500)))
		require.NoError(t, s.Stop(ctx))
		assert.Empty(t, s.Pending())

		ds, err := mem.LoadDrawings(ctx, "alice", "ETHUSDT")
		require.NoError(t, err)
		assert.Len(t, ds, 1)
	})
}
