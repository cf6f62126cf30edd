// Package sqlite provides the public API for the rolebook SQLite store.
// It exposes the factory functions while keeping the implementation
// internal.
package sqlite

import (
	"github.com/mesh-intelligence/rolebook/internal/sqlite"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// NewBackend creates a new SQLite store. The store is not attached; call
// Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".rolebook-db",
//	})
//	defer store.Detach()
func NewBackend() types.Store {
	return sqlite.NewBackend()
}

// WithStore attaches a store, runs fn, and detaches when fn returns, even on
// error or panic.
func WithStore(config types.Config, fn func(types.Store) error) error {
	return sqlite.WithStore(config, fn)
}
