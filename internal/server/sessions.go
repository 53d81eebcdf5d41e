package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/exchange"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/interaction"
	"github.com/amirphl/chart-drawings/internal/render"
	"github.com/amirphl/chart-drawings/internal/snap"
	"github.com/amirphl/chart-drawings/internal/store"
)

var (
	errSessionNotFound = errors.New("session not found")
	errInvalidEvent    = errors.New("invalid event")
)

const (
	defaultInterval = "1h"
	defaultWidth    = 1000
	defaultHeight   = 500
	defaultBars     = 300
)

// EditAnswer is the client's reply to the settings editor a double click opens.
type EditAnswer struct {
	Result  string           `json:"result"` // updated, deleted or cancelled
	Drawing *drawing.Drawing `json:"drawing,omitempty"`
}

// sessionHost answers engine prompts with what the current event carried.
type sessionHost struct {
	*chart.Viewport
	text *string
	edit *EditAnswer
}

func (h *sessionHost) RequestText(string) (string, bool) {
	if h.text == nil {
		return "", false
	}
	return *h.text, true
}

func (h *sessionHost) EditDrawing(d drawing.Drawing) (drawing.Drawing, interaction.EditResult) {
	if h.edit == nil {
		return d, interaction.EditCancelled
	}
	switch h.edit.Result {
	case "updated":
		if h.edit.Drawing != nil {
			return *h.edit.Drawing, interaction.EditUpdated
		}
	case "deleted":
		return d, interaction.EditDeleted
	}
	return d, interaction.EditCancelled
}

// Session is one headless chart with its interaction engine.
type Session struct {
	ID       string    `json:"id"`
	User     string    `json:"user"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Created  time.Time `json:"created"`

	pair     *pair
	viewport *chart.Viewport
	host     *sessionHost
	engine   *interaction.Engine
	live     *render.Live
}

// SessionView is what session endpoints return.
type SessionView struct {
	*Session
	State interaction.State `json:"state"`
	Scene render.Scene      `json:"scene"`
}

// view must be called with the pair lock held.
func (ss *Session) view() SessionView {
	return SessionView{Session: ss, State: ss.engine.State(), Scene: ss.live.Scene()}
}

// Event is one pointer, keyboard or chart action delivered to a session.
type Event struct {
	Type    string      `json:"type"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Key     string      `json:"key,omitempty"`
	Tool    string      `json:"tool,omitempty"`
	Enabled bool        `json:"enabled,omitempty"`
	Bars    float64     `json:"bars,omitempty"`
	Factor  float64     `json:"factor,omitempty"`
	Count   int         `json:"count,omitempty"`
	Width   float64     `json:"width,omitempty"`
	Height  float64     `json:"height,omitempty"`
	Low     float64     `json:"low,omitempty"`
	High    float64     `json:"high,omitempty"`
	Text    *string     `json:"text,omitempty"`
	Edit    *EditAnswer `json:"edit,omitempty"`
}

// apply delivers ev. It must be called with the pair lock held.
func (ss *Session) apply(ev Event) error {
	p := geometry.Pt(ev.X, ev.Y)
	ss.host.text, ss.host.edit = ev.Text, ev.Edit
	defer func() { ss.host.text, ss.host.edit = nil, nil }()

	switch ev.Type {
	case "click":
		ss.viewport.Click(p)
	case "move":
		ss.viewport.Move(p)
	case "dblclick":
		ss.viewport.DoubleClick(p)
	case "down":
		ss.engine.PointerDown(p)
	case "up":
		ss.engine.PointerUp(p)
	case "keydown":
		ss.engine.KeyDown(snap.Key(ev.Key))
	case "keyup":
		ss.engine.KeyUp(snap.Key(ev.Key))
	case "tool":
		t := drawing.Tool(ev.Tool)
		if !t.Valid() {
			return fmt.Errorf("%w: unknown tool %q", errInvalidEvent, ev.Tool)
		}
		ss.engine.SetTool(t)
	case "magnet":
		ss.engine.SetMagnet(ev.Enabled)
	case "delete":
		ss.engine.Delete()
	case "lock":
		ss.engine.ToggleLock()
	case "duplicate":
		ss.engine.Duplicate()
	case "scroll":
		ss.viewport.ScrollBars(ev.Bars)
	case "zoom":
		if ev.Factor <= 0 {
			return fmt.Errorf("%w: zoom factor must be positive", errInvalidEvent)
		}
		ss.viewport.Zoom(ev.Factor)
	case "replay":
		ss.viewport.SetReplay(ev.Count)
	case "step":
		ss.viewport.StepReplay(ev.Count)
	case "resize":
		ss.viewport.SetSize(ev.Width, ev.Height)
	case "price-range":
		ss.viewport.SetPriceRange(ev.Low, ev.High)
	case "autoscale":
		ss.viewport.AutoScale()
	default:
		return fmt.Errorf("%w: unknown type %q", errInvalidEvent, ev.Type)
	}
	return nil
}

type createSessionRequest struct {
	User     string  `json:"user" binding:"required"`
	Symbol   string  `json:"symbol" binding:"required"`
	Interval string  `json:"interval"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Bars     int     `json:"bars"`
}

func (s *Server) newSession(ctx context.Context, req createSessionRequest) (*Session, error) {
	if req.Interval == "" {
		req.Interval = defaultInterval
	}
	if req.Width <= 0 {
		req.Width = defaultWidth
	}
	if req.Height <= 0 {
		req.Height = defaultHeight
	}
	if req.Bars <= 0 {
		req.Bars = defaultBars
	}

	candles, err := s.source.FetchLatestCandles(ctx, req.Symbol, req.Interval, req.Bars)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles: %w", err)
	}
	p, err := s.pair(ctx, req.User, req.Symbol)
	if err != nil {
		return nil, err
	}

	v := chart.NewViewport(candles, req.Interval, req.Width, req.Height)
	host := &sessionHost{Viewport: v}
	ss := &Session{
		ID:       uuid.NewString(),
		User:     req.User,
		Symbol:   store.NormalizeSymbol(req.Symbol),
		Interval: req.Interval,
		Created:  time.Now().UTC(),
		pair:     p,
		viewport: v,
		host:     host,
	}

	p.mu.Lock()
	ss.engine = interaction.New(v, host, p.store, s.cfg.Engine, interaction.WithLogger(s.logger))
	ss.engine.Attach(v)
	ss.live = render.NewLive(ss.engine, v, nil)
	p.mu.Unlock()

	s.mu.Lock()
	s.sessions[ss.ID] = ss
	s.mu.Unlock()
	s.metrics.sessionsActive.Inc()
	s.logger.Infof("Server | session %s opened for %s %s %s", ss.ID, ss.User, ss.Symbol, ss.Interval)
	return ss, nil
}

func (s *Server) session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	return ss, nil
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ss, err := s.newSession(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, exchange.ErrNoCandles) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	ss.pair.mu.Lock()
	defer ss.pair.mu.Unlock()
	c.JSON(http.StatusCreated, ss.view())
}

func (s *Server) getSession(c *gin.Context) {
	ss, err := s.session(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ss.pair.mu.Lock()
	defer ss.pair.mu.Unlock()
	c.JSON(http.StatusOK, ss.view())
}

func (s *Server) closeSession(c *gin.Context) {
	s.mu.Lock()
	ss, ok := s.sessions[c.Param("id")]
	delete(s.sessions, c.Param("id"))
	s.mu.Unlock()
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", errSessionNotFound, c.Param("id")))
		return
	}

	ss.pair.mu.Lock()
	ss.live.Close()
	ss.engine.Detach()
	ss.pair.mu.Unlock()
	s.metrics.sessionsActive.Dec()
	c.Status(http.StatusNoContent)
}

// sessionEvents applies events in order. It stops at the first invalid one;
// the events before it stay applied.
func (s *Server) sessionEvents(c *gin.Context) {
	var events []Event
	if err := c.ShouldBindJSON(&events); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ss, err := s.session(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	ss.pair.mu.Lock()
	defer ss.pair.mu.Unlock()
	for i, ev := range events {
		if err := ss.apply(ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i, "session": ss.view()})
			return
		}
		s.metrics.eventTotal.WithLabelValues(ev.Type).Inc()
	}
	c.JSON(http.StatusOK, ss.view())
}

func (s *Server) sessionSettings(c *gin.Context) {
	var d drawing.Drawing
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ss, err := s.session(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	ss.pair.mu.Lock()
	defer ss.pair.mu.Unlock()
	if _, ok := ss.pair.store.Get(d.ID); !ok {
		s.fail(c, fmt.Errorf("failed to apply settings to %s: %w", d.ID, store.ErrNotFound))
		return
	}
	if !ss.engine.ApplySettings(d) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings rejected", "session": ss.view()})
		return
	}
	c.JSON(http.StatusOK, ss.view())
}

func (s *Server) sessionTransitions(c *gin.Context) {
	ss, err := s.session(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ss.pair.mu.Lock()
	defer ss.pair.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"transitions": ss.engine.Transitions(), "metrics": ss.engine.Metrics()})
}
