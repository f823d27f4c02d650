// Package db prepares the optional PostgreSQL backend of the record store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// schema is applied in order; every statement is idempotent.
var schema = []struct {
	name string
	stmt string
}{
	{"collections", `
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			version BIGINT NOT NULL
		)`},
	{"collection_history", `
		CREATE TABLE IF NOT EXISTS collection_history (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			data JSONB NOT NULL,
			version BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`},
	{"collection_history_created_at", `
		CREATE INDEX IF NOT EXISTS collection_history_created_at
			ON collection_history (created_at)`},
}

// initTimeout bounds connectivity check and schema creation at startup.
const initTimeout = 10 * time.Second

// InitPostgres opens dsn, checks connectivity and creates the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// CreateSchema creates the collections and history tables if missing.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, s := range schema {
		if _, err := db.ExecContext(ctx, s.stmt); err != nil {
			return fmt.Errorf("create schema %s: %w", s.name, err)
		}
	}
	return nil
}
