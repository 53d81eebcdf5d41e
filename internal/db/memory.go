package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amirphl/chart-drawings/internal/drawing"
)

type MemoryStorage struct {
	mu sync.RWMutex

	// Drawing lists keyed by user, then symbol
	drawings map[string]map[string][]drawing.Drawing
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{drawings: make(map[string]map[string][]drawing.Drawing)}
}

func cloneAll(ds []drawing.Drawing) []drawing.Drawing {
	out := make([]drawing.Drawing, len(ds))
	for i := range ds {
		out[i] = ds[i].Clone()
	}
	return out
}

func (m *MemoryStorage) SaveDrawings(ctx context.Context, user, symbol string, ds []drawing.Drawing) error {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return err
	}
	if err := validateDrawings(ds); err != nil {
		return fmt.Errorf("invalid drawings for %s %s: %w", user, symbol, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ds) == 0 {
		delete(m.drawings[user], symbol)
		return nil
	}
	if m.drawings[user] == nil {
		m.drawings[user] = make(map[string][]drawing.Drawing)
	}
	m.drawings[user][symbol] = cloneAll(ds)
	return nil
}

func (m *MemoryStorage) LoadDrawings(ctx context.Context, user, symbol string) ([]drawing.Drawing, error) {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.drawings[user][symbol]), nil
}

func (m *MemoryStorage) DeleteDrawings(ctx context.Context, user, symbol string) error {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drawings[user][symbol]; !ok {
		return fmt.Errorf("failed to delete drawings for %s %s: %w", user, symbol, ErrNotFound)
	}
	delete(m.drawings[user], symbol)
	return nil
}

func (m *MemoryStorage) ListSymbols(ctx context.Context, user string) ([]string, error) {
	user, err := normalizeUser(user)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.drawings[user]))
	for s := range m.drawings[user] {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStorage) Close() error { return nil }
