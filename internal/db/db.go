// Package db persists drawing lists per user and symbol.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db/conf"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/store"
)

var (
	ErrNotFound   = errors.New("no drawings stored")
	ErrInvalidKey = errors.New("user and symbol are required")
)

// Storage is the interface for all persistent drawing storage. Saving
// replaces the whole list of a (user, symbol) pair and preserves its order.
type Storage interface {
	SaveDrawings(ctx context.Context, user, symbol string, ds []drawing.Drawing) error
	// LoadDrawings returns an empty list when nothing is stored.
	LoadDrawings(ctx context.Context, user, symbol string) ([]drawing.Drawing, error)
	// DeleteDrawings returns ErrNotFound when nothing is stored.
	DeleteDrawings(ctx context.Context, user, symbol string) error
	ListSymbols(ctx context.Context, user string) ([]string, error)
	Close() error
}

// Open returns the storage selected by cfg.Driver.
func Open(cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		return NewSQLite(cfg.DBConnStr)
	case config.DriverPostgres:
		c, err := conf.NewConfig(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			return nil, fmt.Errorf("failed to create DB config: %w", err)
		}
		return New(*c)
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}

func normalizeKey(user, symbol string) (string, string, error) {
	user = strings.TrimSpace(user)
	symbol = store.NormalizeSymbol(symbol)
	if user == "" || symbol == "" {
		return "", "", ErrInvalidKey
	}
	return user, symbol, nil
}

func normalizeUser(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", ErrInvalidKey
	}
	return user, nil
}

// validateDrawings rejects the list if any record is invalid or an id repeats.
func validateDrawings(ds []drawing.Drawing) error {
	var errs error
	seen := make(map[string]struct{}, len(ds))
	for i := range ds {
		if err := ds[i].Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("drawing %d: %w", i, err))
			continue
		}
		if _, dup := seen[ds[i].ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("drawing %d: %w: %s", i, store.ErrDuplicateID, ds[i].ID))
			continue
		}
		seen[ds[i].ID] = struct{}{}
	}
	return errs
}
