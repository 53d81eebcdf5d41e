// Package autosave writes changed drawing stores to storage on a schedule.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db"
	"github.com/amirphl/chart-drawings/internal/store"
	"github.com/amirphl/chart-drawings/internal/utils"
)

// Key identifies one persisted drawing list.
type Key struct {
	User   string
	Symbol string
}

func (k Key) String() string { return k.User + "/" + k.Symbol }

// Stats counts flush outcomes since the saver was created.
type Stats struct {
	Saved   uint64
	Failed  uint64
	Pending int
}

type Option func(*Saver)

// WithBackOff replaces the retry policy factory. Each save gets a fresh policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Saver) { s.newBackOff = fn }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Saver) { s.logger = l }
}

// Saver tracks which (user, symbol) stores changed and flushes them.
type Saver struct {
	storage    db.Storage
	schedule   string
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *logrus.Logger
	cron       *cron.Cron

	mu     sync.Mutex
	dirty  map[Key]*store.Store
	stats  Stats
	ctx    context.Context
	cancel context.CancelFunc
}

func New(storage db.Storage, cfg config.AutosaveConfig, opts ...Option) *Saver {
	s := &Saver{
		storage:    storage,
		schedule:   cfg.Schedule,
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     utils.GetLogger(),
		dirty:      make(map[Key]*store.Store),
	}
	for _, o := range opts {
		o(s)
	}
	s.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.logger))))
	return s
}

// Watch marks a store dirty whenever any store of the book mutates.
func (s *Saver) Watch(user string, b *store.Book) {
	b.Subscribe(func(m store.Mutation) {
		st, ok := b.Get(m.Symbol)
		if !ok {
			return
		}
		s.MarkDirty(Key{User: user, Symbol: m.Symbol}, st)
	})
}

// MarkDirty queues st to be saved under k on the next flush.
func (s *Saver) MarkDirty(k Key, st *store.Store) {
	s.mu.Lock()
	s.dirty[k] = st
	s.mu.Unlock()
}

// Pending returns the keys waiting to be saved, sorted.
func (s *Saver) Pending() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.dirty))
	for k := range s.dirty {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Flush saves every dirty store, retrying each with backoff. Stores that still
// fail are queued again, except for keys storage can never accept.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.dirty
	s.dirty = make(map[Key]*store.Store)
	s.mu.Unlock()

	var errs error
	for k, st := range batch {
		ds := st.List()
		permanent := false
		op := func() error {
			err := s.storage.SaveDrawings(ctx, k.User, k.Symbol, ds)
			if errors.Is(err, db.ErrInvalidKey) {
				permanent = true
				return backoff.Permanent(err)
			}
			return err
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
		notify := func(err error, d time.Duration) {
			s.logger.Warnf("Autosave | retrying %s in %s: %v", k, d, err)
		}
		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to save %s: %w", k, err))
			s.mu.Lock()
			s.stats.Failed++
			if _, again := s.dirty[k]; !again && !permanent {
				s.dirty[k] = st
			}
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		s.stats.Saved++
		s.mu.Unlock()
		s.logger.Debugf("Autosave | saved %d drawings for %s", len(ds), k)
	}
	return errs
}

// Start schedules periodic flushes until ctx is done or Stop is called.
func (s *Saver) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	flushCtx := s.ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Flush(flushCtx); err != nil {
			s.logger.Errorf("Autosave | flush failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to register autosave schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Infof("Autosave | started with schedule %s", s.schedule)
	return nil
}

// Stop waits for a running flush, then flushes whatever is still pending.
func (s *Saver) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.logger.Info("Autosave | stopped")
	return s.Flush(ctx)
}

func (s *Saver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Pending = len(s.dirty)
	return st
}
