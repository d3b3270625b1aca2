// Package store persists the assembled topology table.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navitron/internal/config"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Store holds collections of JSON documents keyed by collection name.
type Store interface {
	ReadAll(ctx context.Context, collection string) ([]json.RawMessage, error)
	DeleteAll(ctx context.Context, collection string) error
	InsertMany(ctx context.Context, collection string, docs []json.RawMessage) error
	// Replace swaps the whole collection for docs. Readers never observe a
	// partially written collection.
	Replace(ctx context.Context, collection string, docs []json.RawMessage) error
}

// NewFromConfig opens the store selected by cfg. The returned func releases
// its resources.
func NewFromConfig(ctx context.Context, cfg config.StoreConfig, db config.DatabaseConfig, logger *zap.Logger) (Store, func(), error) {
	switch cfg.Type {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, db.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		s, err := New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	case config.StoreFile:
		s, err := NewFileStore(cfg.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}
}

// Encode marshals each value into a document.
func Encode[T any](values []T) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, len(values))
	for i, v := range values {
		b, err := codec.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document %d: %w", i, err)
		}
		docs[i] = b
	}
	return docs, nil
}

// Decode unmarshals every document into T.
func Decode[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, len(docs))
	for i, d := range docs {
		if err := codec.Unmarshal(d, &out[i]); err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", i, err)
		}
	}
	return out, nil
}
