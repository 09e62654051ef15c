package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const createEntitiesTable = `
CREATE TABLE IF NOT EXISTS entities (
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	doc JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, key)
)`

const createEntitiesIndex = `
CREATE INDEX IF NOT EXISTS idx_entities_collection ON entities (collection)`

// PostgresKV persists entity documents in a single (collection, key, doc)
// table so the query layer can read them by key or scan a collection.
type PostgresKV struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresKV creates a Postgres-backed entity store.
func NewPostgresKV(db *pgxpool.Pool, logger *zap.Logger) *PostgresKV {
	return &PostgresKV{
		db:     db,
		logger: logger,
	}
}

// Initialize creates the entities table if it does not exist yet.
func (s *PostgresKV) Initialize(ctx context.Context) error {
	for _, query := range []string{createEntitiesTable, createEntitiesIndex} {
		if _, err := s.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to initialize entity schema: %w", err)
		}
	}
	s.logger.Info("Entity store schema initialized")
	return nil
}

// Close releases the connection pool.
func (s *PostgresKV) Close() error {
	s.db.Close()
	return nil
}

// Get loads one entity document.
func (s *PostgresKV) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var doc []byte
	err := s.db.QueryRow(ctx,
		`SELECT doc FROM entities WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get entity: %w", err)
	}
	return doc, true, nil
}

// Put upserts one entity document, replacing the previous version.
func (s *PostgresKV) Put(ctx context.Context, collection, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO entities (collection, key, doc, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (collection, key) DO UPDATE SET doc = $3, updated_at = NOW()`,
		collection, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put entity: %w", err)
	}
	return nil
}
