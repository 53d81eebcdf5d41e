// Package store holds the ordered per-symbol drawing collections.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/amirphl/chart-drawings/internal/drawing"
)

var (
	ErrDuplicateID = errors.New("drawing id already exists")
	ErrNotFound    = errors.New("drawing not found")
)

// Op is the kind of a store mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// Mutation describes one change. Drawing is empty for OpClear.
type Mutation struct {
	Op      Op              `json:"op"`
	Symbol  string          `json:"symbol"`
	Drawing drawing.Drawing `json:"drawing"`
}

// Store is the ordered drawing collection of one symbol. List order is
// z-order: later drawings paint on top.
type Store struct {
	mu     sync.RWMutex
	symbol string
	order  []string
	items  map[string]drawing.Drawing

	subMu   sync.Mutex
	subs    map[int]func(Mutation)
	nextSub int
}

func New(symbol string) *Store {
	return &Store{
		symbol: NormalizeSymbol(symbol),
		items:  make(map[string]drawing.Drawing),
		subs:   make(map[int]func(Mutation)),
	}
}

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Load builds a store from persisted records. Invalid or duplicate records
// are dropped; their errors are combined into the returned error while the
// valid records are kept.
func Load(symbol string, records []drawing.Drawing) (*Store, error) {
	s := New(symbol)
	var errs error
	for i, r := range records {
		if err := r.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record %d (%s): %w", i, r.ID, err))
			continue
		}
		if _, ok := s.items[r.ID]; ok {
			errs = multierr.Append(errs, fmt.Errorf("record %d (%s): %w", i, r.ID, ErrDuplicateID))
			continue
		}
		s.order = append(s.order, r.ID)
		s.items[r.ID] = r.Clone()
	}
	return s, errs
}

// Symbol returns the symbol this store belongs to.
func (s *Store) Symbol() string {
	return s.symbol
}

// Add appends a drawing on top of the others.
func (s *Store) Add(d drawing.Drawing) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("failed to add drawing: %w", err)
	}
	s.mu.Lock()
	if _, ok := s.items[d.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("failed to add drawing %s: %w", d.ID, ErrDuplicateID)
	}
	d = d.Clone()
	s.order = append(s.order, d.ID)
	s.items[d.ID] = d
	s.mu.Unlock()

	s.notify(Mutation{Op: OpAdd, Symbol: s.symbol, Drawing: d.Clone()})
	return nil
}

// Update replaces an existing drawing in place.
func (s *Store) Update(d drawing.Drawing) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("failed to update drawing: %w", err)
	}
	s.mu.Lock()
	if _, ok := s.items[d.ID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("failed to update drawing %s: %w", d.ID, ErrNotFound)
	}
	d = d.Clone()
	s.items[d.ID] = d
	s.mu.Unlock()

	s.notify(Mutation{Op: OpUpdate, Symbol: s.symbol, Drawing: d.Clone()})
	return nil
}

// Remove deletes a drawing and returns it.
func (s *Store) Remove(id string) (drawing.Drawing, bool) {
	s.mu.Lock()
	d, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return drawing.Drawing{}, false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify(Mutation{Op: OpRemove, Symbol: s.symbol, Drawing: d.Clone()})
	return d, true
}

// Clear removes every drawing.
func (s *Store) Clear() {
	s.mu.Lock()
	s.order = nil
	s.items = make(map[string]drawing.Drawing)
	s.mu.Unlock()

	s.notify(Mutation{Op: OpClear, Symbol: s.symbol})
}

// Get returns a copy of a drawing.
func (s *Store) Get(id string) (drawing.Drawing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.items[id]
	if !ok {
		return drawing.Drawing{}, false
	}
	return d.Clone(), true
}

// List returns copies of all drawings in z-order.
func (s *Store) List() []drawing.Drawing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]drawing.Drawing, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Len returns the number of drawings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Subscribe registers fn for every mutation. Callbacks run synchronously on
// the mutating goroutine after the store lock is released.
func (s *Store) Subscribe(fn func(Mutation)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(m Mutation) {
	s.subMu.Lock()
	fns := make([]func(Mutation), 0, len(s.subs))
	// registration order
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}
