package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStore keeps each collection as a JSON array in dir/<collection>.json.
type FileStore struct {
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, log: logger.Named("file_store")}, nil
}

// Path returns the file backing a collection.
func (s *FileStore) Path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// ReadAll returns the stored documents. A missing file is an empty collection.
func (s *FileStore) ReadAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(collection)
}

// DeleteAll removes the collection's file.
func (s *FileStore) DeleteAll(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path(collection)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// InsertMany appends docs to the collection.
func (s *FileStore) InsertMany(ctx context.Context, collection string, docs []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.read(collection)
	if err != nil {
		return err
	}
	return s.write(collection, append(existing, docs...))
}

// Replace writes docs to a temporary file and renames it over the collection.
func (s *FileStore) Replace(ctx context.Context, collection string, docs []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(collection, docs); err != nil {
		return err
	}
	s.log.Info("Collection replaced", zap.String("collection", collection), zap.Int("documents", len(docs)))
	return nil
}

func (s *FileStore) read(collection string) ([]json.RawMessage, error) {
	b, err := os.ReadFile(s.Path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}
	var docs []json.RawMessage
	if err := codec.Unmarshal(b, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", collection, err)
	}
	return docs, nil
}

func (s *FileStore) write(collection string, docs []json.RawMessage) error {
	if docs == nil {
		docs = []json.RawMessage{}
	}
	b, err := codec.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(collection)); err != nil {
		return fmt.Errorf("failed to move collection %s into place: %w", collection, err)
	}
	return nil
}
