package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const documentsTable = "navitron_documents"

var documentColumns = []string{"collection", "seq", "doc"}

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// writer is satisfied by both the pool and a transaction.
type writer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresStore keeps each document as one jsonb row.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the documents table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS navitron_documents (
            collection TEXT NOT NULL,
            seq INTEGER NOT NULL,
            doc JSONB NOT NULL,
            PRIMARY KEY (collection, seq)
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", documentsTable, err)
	}
	return nil
}

// ReadAll returns the collection's documents in insertion order.
func (s *PostgresStore) ReadAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT doc
        FROM navitron_documents
        WHERE collection = $1
        ORDER BY seq ASC;
    `, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return docs, nil
}

// DeleteAll removes every document in the collection.
func (s *PostgresStore) DeleteAll(ctx context.Context, collection string) error {
	return s.deleteAll(ctx, s.pool, collection)
}

// InsertMany appends docs to the collection.
func (s *PostgresStore) InsertMany(ctx context.Context, collection string, docs []json.RawMessage) error {
	var next int64
	if err := s.nextSeq(ctx, collection, &next); err != nil {
		return err
	}
	return s.copyDocs(ctx, s.pool, collection, docs, next)
}

// Replace deletes and reinserts the collection inside one transaction.
func (s *PostgresStore) Replace(ctx context.Context, collection string, docs []json.RawMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.deleteAll(ctx, tx, collection); err != nil {
		return err
	}
	if err := s.copyDocs(ctx, tx, collection, docs, 0); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Collection replaced", zap.String("collection", collection), zap.Int("documents", len(docs)))
	return nil
}

func (s *PostgresStore) deleteAll(ctx context.Context, w writer, collection string) error {
	tag, err := w.Exec(ctx, `DELETE FROM navitron_documents WHERE collection = $1;`, collection)
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	s.log.Debug("Collection cleared", zap.String("collection", collection), zap.Int64("rows", tag.RowsAffected()))
	return nil
}

func (s *PostgresStore) nextSeq(ctx context.Context, collection string, next *int64) error {
	rows, err := s.pool.Query(ctx, `
        SELECT COALESCE(MAX(seq) + 1, 0)
        FROM navitron_documents
        WHERE collection = $1;
    `, collection)
	if err != nil {
		return fmt.Errorf("failed to read next sequence for %s: %w", collection, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(next); err != nil {
			return fmt.Errorf("failed to scan next sequence: %w", err)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) copyDocs(ctx context.Context, w writer, collection string, docs []json.RawMessage, start int64) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([][]any, len(docs))
	for i, d := range docs {
		doc := d
		if len(doc) == 0 || string(doc) == "null" {
			doc = json.RawMessage("{}")
		}
		rows[i] = []any{collection, start + int64(i), doc}
	}

	copyCount, err := w.CopyFrom(ctx, pgx.Identifier{documentsTable}, documentColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy documents: %w", err)
	}
	if int(copyCount) != len(docs) {
		return fmt.Errorf("mismatch in copied documents count: expected %d, got %d", len(docs), copyCount)
	}
	return nil
}
