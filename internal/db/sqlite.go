package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/utils"
)

// SQLiteStorage persists drawings to a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (or creates) the SQLite database and runs migrations.
func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}

	utils.GetLogger().Infof("Storage | sqlite opened: %s", path)
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drawings (
			user_id    TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			id         TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			kind       TEXT    NOT NULL,
			payload    TEXT    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, symbol, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drawings_user_symbol_seq ON drawings(user_id, symbol, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStorage) SaveDrawings(ctx context.Context, user, symbol string, ds []drawing.Drawing) error {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return err
	}
	if err := validateDrawings(ds); err != nil {
		return fmt.Errorf("invalid drawings for %s %s: %w", user, symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM drawings WHERE user_id = ? AND symbol = ?`, user, symbol); err != nil {
		return fmt.Errorf("failed to clear drawings for %s %s: %w", user, symbol, err)
	}
	now := time.Now().Unix()
	for i, d := range ds {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal drawing %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO drawings
			(user_id, symbol, id, seq, kind, payload, updated_at)
			VALUES (?,?,?,?,?,?,?)`,
			user, symbol, d.ID, i, string(d.Kind), string(payload), now,
		); err != nil {
			return fmt.Errorf("failed to save drawing at index %d (%s): %w", i, d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadDrawings(ctx context.Context, user, symbol string) ([]drawing.Drawing, error) {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM drawings WHERE user_id = ? AND symbol = ? ORDER BY seq`, user, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query drawings for %s %s: %w", user, symbol, err)
	}
	defer rows.Close()
	return scanDrawings(rows)
}

func (s *SQLiteStorage) DeleteDrawings(ctx context.Context, user, symbol string) error {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM drawings WHERE user_id = ? AND symbol = ?`, user, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete drawings for %s %s: %w", user, symbol, err)
	}
	return checkDeleted(res, user, symbol)
}

func (s *SQLiteStorage) ListSymbols(ctx context.Context, user string) ([]string, error) {
	user, err := normalizeUser(user)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM drawings WHERE user_id = ? ORDER BY symbol`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols for %s: %w", user, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *SQLiteStorage) Close() error {
	utils.GetLogger().Info("Storage | closing sqlite")
	return s.db.Close()
}
