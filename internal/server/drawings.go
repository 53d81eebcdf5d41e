package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/amirphl/chart-drawings/internal/db"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/store"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrInvalidKey),
		errors.Is(err, drawing.ErrInvalidKind),
		errors.Is(err, drawing.ErrArity),
		errors.Is(err, drawing.ErrInvalidPrice),
		errors.Is(err, drawing.ErrMissingID),
		errors.Is(err, drawing.ErrKindChanged):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, db.ErrNotFound), errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateID), errors.Is(err, drawing.ErrLocked):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Errorf("Server | %s %s failed", c.Request.Method, c.FullPath())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) listSymbols(c *gin.Context) {
	user := c.Param("user")
	stored, err := s.storage.ListSymbols(c.Request.Context(), user)
	if err != nil {
		s.fail(c, err)
		return
	}

	seen := make(map[string]struct{}, len(stored))
	for _, sym := range stored {
		seen[sym] = struct{}{}
	}
	b := s.book(user)
	for _, sym := range b.Symbols() {
		if st, ok := b.Get(sym); ok && st.Len() > 0 {
			seen[sym] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	c.JSON(http.StatusOK, gin.H{"symbols": out})
}

func (s *Server) listDrawings(c *gin.Context) {
	p, err := s.pair(c.Request.Context(), c.Param("user"), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"symbol": p.store.Symbol(), "drawings": p.store.List()})
}

// replaceDrawings swaps the whole list. Locked drawings survive and only take
// style changes from a record with their id. Invalid records are skipped and
// reported; the valid ones are kept in request order.
func (s *Server) replaceDrawings(c *gin.Context) {
	var records []drawing.Drawing
	if err := c.ShouldBindJSON(&records); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.pair(c.Request.Context(), c.Param("user"), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	clearUnlocked(p.store)
	var errs error
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		errs = multierr.Append(errs, replaceOne(p.store, r, seen))
	}
	rejected := []string{}
	for _, e := range multierr.Errors(errs) {
		rejected = append(rejected, e.Error())
	}
	c.JSON(http.StatusOK, gin.H{"symbol": p.store.Symbol(), "drawings": p.store.List(), "rejected": rejected})
}

// replaceOne adds r, or applies it as a settings edit when it names a locked
// drawing that survived the clear.
func replaceOne(st *store.Store, r drawing.Drawing, seen map[string]bool) error {
	if seen[r.ID] {
		return fmt.Errorf("failed to add drawing %s: %w", r.ID, store.ErrDuplicateID)
	}
	seen[r.ID] = true
	cur, ok := st.Get(r.ID)
	if !ok {
		return st.Add(r)
	}
	if r.Kind != cur.Kind {
		return fmt.Errorf("failed to update drawing %s: %w: %s to %s", r.ID, drawing.ErrKindChanged, cur.Kind, r.Kind)
	}
	return st.Update(cur.WithSettings(r))
}

func (s *Server) clearDrawings(c *gin.Context) {
	p, err := s.pair(c.Request.Context(), c.Param("user"), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	clearUnlocked(p.store)
	c.Status(http.StatusNoContent)
}

// clearUnlocked empties the store except for locked drawings.
func clearUnlocked(st *store.Store) {
	ds := st.List()
	locked := 0
	for _, d := range ds {
		if d.Locked {
			locked++
		}
	}
	if locked == 0 {
		st.Clear()
		return
	}
	for _, d := range ds {
		if !d.Locked {
			st.Remove(d.ID)
		}
	}
}

func (s *Server) addDrawing(c *gin.Context) {
	var d drawing.Drawing
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if d.ID == "" {
		d.ID = drawing.NewID()
	}
	p, err := s.pair(c.Request.Context(), c.Param("user"), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Add(d); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// updateDrawing applies an edited record under the same rules as the settings
// editor: id and kind are fixed, and a locked drawing only takes style fields.
func (s *Server) updateDrawing(c *gin.Context) {
	var d drawing.Drawing
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	p, err := s.pair(c.Request.Context(), c.Param("user"), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.store.Get(id)
	if !ok {
		s.fail(c, fmt.Errorf("failed to update drawing %s: %w", id, store.ErrNotFound))
		return
	}
	if d.Kind != "" && d.Kind != cur.Kind {
		s.fail(c, fmt.Errorf("failed to update drawing %s: %w: %s to %s", id, drawing.ErrKindChanged, cur.Kind, d.Kind))
		return
	}
	next := cur.WithSettings(d)
	if err := p.store.Update(next); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) removeDrawing(c *gin.Context) {
	id := c.Param("id")
	p, err := s.pair(c.Request.Context(), c.Param("user"), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.store.Get(id)
	if !ok {
		s.fail(c, fmt.Errorf("failed to remove drawing %s: %w", id, store.ErrNotFound))
		return
	}
	if d.Locked {
		s.fail(c, fmt.Errorf("failed to remove drawing %s: %w", id, drawing.ErrLocked))
		return
	}
	p.store.Remove(id)
	c.Status(http.StatusNoContent)
}
