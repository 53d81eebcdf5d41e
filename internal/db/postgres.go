package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/amirphl/chart-drawings/internal/db/conf"
	"github.com/amirphl/chart-drawings/internal/drawing"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// executeWithTransaction runs fn inside the context's transaction, or a new
// one that is committed on success and rolled back on error.
func (p *Default) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}
	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Default) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

// Default is the Postgres storage. Each drawing is one row holding its JSON
// record in a JSONB column.
type Default struct {
	db *sql.DB
}

func New(c conf.Config) (*Default, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("postgres config has no connection")
	}
	return &Default{db: c.DB}, nil
}

func (p *Default) GetDB() *sql.DB {
	return p.db
}

func (p *Default) SaveDrawings(ctx context.Context, user, symbol string, ds []drawing.Drawing) error {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return err
	}
	if err := validateDrawings(ds); err != nil {
		return fmt.Errorf("invalid drawings for %s %s: %w", user, symbol, err)
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM drawings WHERE user_id = $1 AND symbol = $2`, user, symbol); err != nil {
			return fmt.Errorf("failed to clear drawings for %s %s: %w", user, symbol, err)
		}
		if len(ds) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO drawings (user_id, symbol, id, seq, kind, payload, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, d := range ds {
			payload, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to marshal drawing %s: %w", d.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, user, symbol, d.ID, i, string(d.Kind), string(payload)); err != nil {
				return fmt.Errorf("failed to save drawing at index %d (%s): %w", i, d.ID, err)
			}
		}
		return nil
	})
}

func (p *Default) LoadDrawings(ctx context.Context, user, symbol string) ([]drawing.Drawing, error) {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return nil, err
	}
	rows, err := p.queryWithTransaction(ctx,
		`SELECT payload FROM drawings WHERE user_id = $1 AND symbol = $2 ORDER BY seq`, user, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query drawings for %s %s: %w", user, symbol, err)
	}
	defer rows.Close()
	return scanDrawings(rows)
}

func (p *Default) DeleteDrawings(ctx context.Context, user, symbol string) error {
	user, symbol, err := normalizeKey(user, symbol)
	if err != nil {
		return err
	}
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM drawings WHERE user_id = $1 AND symbol = $2`, user, symbol)
		if err != nil {
			return fmt.Errorf("failed to delete drawings for %s %s: %w", user, symbol, err)
		}
		return checkDeleted(res, user, symbol)
	})
}

func (p *Default) ListSymbols(ctx context.Context, user string) ([]string, error) {
	user, err := normalizeUser(user)
	if err != nil {
		return nil, err
	}
	rows, err := p.queryWithTransaction(ctx,
		`SELECT DISTINCT symbol FROM drawings WHERE user_id = $1 ORDER BY symbol`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols for %s: %w", user, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (p *Default) Close() error {
	return p.db.Close()
}

func scanDrawings(rows *sql.Rows) ([]drawing.Drawing, error) {
	out := []drawing.Drawing{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan drawing: %w", err)
		}
		var d drawing.Drawing
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("failed to decode drawing: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drawing rows: %w", err)
	}
	return out, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func checkDeleted(res sql.Result, user, symbol string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete drawings for %s %s: %w", user, symbol, ErrNotFound)
	}
	return nil
}
