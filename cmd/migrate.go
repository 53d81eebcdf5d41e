package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db/conf"
	"github.com/amirphl/chart-drawings/internal/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "create the Postgres database if missing and apply scripts/schema.sql",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate needs the %s driver, got %s", config.DriverPostgres, cfg.Storage.Driver)
		}
		return runMigrations(cmd.Context(), cfg.Storage.DBConnStr)
	},
}

// adminConnStr points connStr at the postgres maintenance database.
func adminConnStr(connStr string) (string, string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", fmt.Errorf("database name not found in connection string")
	}
	admin := *u
	admin.Path = "/postgres"
	return admin.String(), dbName, nil
}

// runMigrations creates the database if it doesn't exist and runs the schema.sql script
func runMigrations(ctx context.Context, connStr string) error {
	logger := utils.GetLogger()
	logger.Info("Migrate | running database migrations")

	baseConnStr, dbName, err := adminConnStr(connStr)
	if err != nil {
		return err
	}

	baseDB, err := sql.Open("postgres", baseConnStr)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}
	if !exists {
		logger.Infof("Migrate | creating database %s", dbName)
		if _, err := baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	path, err := conf.SchemaPath()
	if err != nil {
		return err
	}
	schemaSQL, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	for _, stmt := range conf.Statements(string(schemaSQL)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema.sql: %w", err)
		}
	}

	logger.Info("Migrate | database migrations completed")
	return nil
}
