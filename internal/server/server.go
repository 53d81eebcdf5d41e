// Package server exposes drawings and headless interaction sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/amirphl/chart-drawings/internal/autosave"
	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db"
	"github.com/amirphl/chart-drawings/internal/exchange"
	"github.com/amirphl/chart-drawings/internal/store"
	"github.com/amirphl/chart-drawings/internal/utils"
)

// pair is the drawing store of one (user, symbol). Its mutex serializes every
// operation touching the store, including all sessions bound to it.
type pair struct {
	mu    sync.Mutex
	store *store.Store
}

type Option func(*Server)

func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSaver marks stores dirty on every mutation so the saver persists them.
func WithSaver(saver *autosave.Saver) Option {
	return func(s *Server) { s.saver = saver }
}

type Server struct {
	cfg     config.Config
	storage db.Storage
	source  exchange.CandleSource
	saver   *autosave.Saver
	logger  *logrus.Logger
	metrics *metrics
	router  *gin.Engine

	mu       sync.Mutex
	books    map[string]*store.Book
	pairs    map[autosave.Key]*pair
	sessions map[string]*Session
}

func New(cfg config.Config, storage db.Storage, source exchange.CandleSource, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		storage:  storage,
		source:   source,
		logger:   utils.GetLogger(),
		metrics:  newMetrics(),
		books:    make(map[string]*store.Book),
		pairs:    make(map[autosave.Key]*pair),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(s)
	}
	if s.saver != nil {
		s.metrics.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "chart_autosave_pending",
				Help: "Drawing lists waiting to be saved",
			},
			func() float64 { return float64(s.saver.Stats().Pending) },
		))
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		users := api.Group("/users/:user")
		users.GET("/symbols", s.listSymbols)
		users.GET("/drawings/:symbol", s.listDrawings)
		users.PUT("/drawings/:symbol", s.replaceDrawings)
		users.DELETE("/drawings/:symbol", s.clearDrawings)
		users.POST("/drawings/:symbol", s.addDrawing)
		users.PUT("/drawings/:symbol/:id", s.updateDrawing)
		users.DELETE("/drawings/:symbol/:id", s.removeDrawing)

		sessions := api.Group("/sessions")
		sessions.POST("", s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.closeSession)
		sessions.POST("/:id/events", s.sessionEvents)
		sessions.POST("/:id/settings", s.sessionSettings)
		sessions.GET("/:id/transitions", s.sessionTransitions)
	}
	return r
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Server | listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Server | shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// book returns the user's book, creating and watching it on first use.
func (s *Server) book(user string) *store.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.books[user]; ok {
		return b
	}
	b := store.NewBook()
	b.Subscribe(func(m store.Mutation) {
		s.metrics.mutationTotal.WithLabelValues(string(m.Op)).Inc()
	})
	if s.saver != nil {
		s.saver.Watch(user, b)
	}
	s.books[user] = b
	return b
}

// pair returns the store of (user, symbol), loading it from storage on first
// use. Invalid stored records are dropped and logged.
func (s *Server) pair(ctx context.Context, user, symbol string) (*pair, error) {
	key := autosave.Key{User: user, Symbol: store.NormalizeSymbol(symbol)}
	if key.User == "" || key.Symbol == "" {
		return nil, db.ErrInvalidKey
	}

	s.mu.Lock()
	p, ok := s.pairs[key]
	s.mu.Unlock()
	if ok {
		return p, nil
	}

	records, err := s.storage.LoadDrawings(ctx, key.User, key.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load drawings for %s: %w", key, err)
	}

	b := s.book(key.User)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pairs[key]; ok {
		return p, nil
	}
	st, err := b.Load(key.Symbol, records)
	if err != nil {
		s.logger.WithError(err).Warnf("Server | dropped invalid stored drawings for %s", key)
	}
	p = &pair{store: st}
	s.pairs[key] = p
	return p, nil
}
