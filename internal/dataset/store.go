package dataset

import (
	"context"
	"log/slog"
	"sync"
)

// Store caches the loaded table for the process lifetime. The first
// successful load wins; later readers get the same table until Reload
// or Invalidate is called.
type Store struct {
	loader *Loader
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	table *Table
}

// NewStore creates a store that loads from path on first access.
func NewStore(loader *Loader, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		loader: loader,
		path:   path,
		logger: logger.With(slog.String("component", "dataset_store")),
	}
}

// Get returns the cached table, loading it on first access. A failed
// load is not cached; the next call retries.
func (s *Store) Get(ctx context.Context) (*Table, error) {
	s.mu.RLock()
	if s.table != nil {
		defer s.mu.RUnlock()
		return s.table, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != nil {
		return s.table, nil
	}

	table, err := s.loader.Load(ctx, s.path)
	if err != nil {
		return nil, err
	}
	s.table = table
	return table, nil
}

// Reload discards the cached table and loads the file again. On failure
// the previous table is kept so readers are not left without data.
func (s *Store) Reload(ctx context.Context) (*Table, error) {
	table, err := s.loader.Load(ctx, s.path)
	if err != nil {
		s.logger.ErrorContext(ctx, "dataset reload failed, keeping cached table",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "dataset reloaded",
		slog.String("path", s.path),
		slog.Int("rows", table.Len()))
	return table, nil
}

// Invalidate drops the cached table; the next Get loads from disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.table = nil
	s.mu.Unlock()
}

// Cached reports whether a table is currently cached.
func (s *Store) Cached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table != nil
}
