package store

import (
	"sort"
	"sync"

	"github.com/amirphl/chart-drawings/internal/drawing"
)

// Book keeps one store per symbol. Subscribers of the book see mutations of
// every store it holds, including stores created later.
type Book struct {
	mu     sync.Mutex
	stores map[string]*Store
	subs   []func(Mutation)
}

func NewBook() *Book {
	return &Book{stores: make(map[string]*Store)}
}

// Switch returns the store of symbol, creating an empty one on first use.
func (b *Book) Switch(symbol string) *Store {
	symbol = NormalizeSymbol(symbol)
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.stores[symbol]; ok {
		return s
	}
	s := New(symbol)
	b.attachLocked(s)
	return s
}

// Load replaces the store of symbol with one built from records.
// See Load for how invalid records are handled.
func (b *Book) Load(symbol string, records []drawing.Drawing) (*Store, error) {
	s, err := Load(symbol, records)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attachLocked(s)
	return s, err
}

func (b *Book) attachLocked(s *Store) {
	b.stores[s.Symbol()] = s
	s.Subscribe(b.forward)
}

func (b *Book) forward(m Mutation) {
	b.mu.Lock()
	subs := make([]func(Mutation), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(m)
	}
}

// Subscribe registers fn for mutations of all stores in the book.
func (b *Book) Subscribe(fn func(Mutation)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Get returns the store of symbol if the book has one.
func (b *Book) Get(symbol string) (*Store, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stores[NormalizeSymbol(symbol)]
	return s, ok
}

// Symbols returns the symbols with a store, sorted.
func (b *Book) Symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.stores))
	for sym := range b.stores {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
