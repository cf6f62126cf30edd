package types

import (
	"errors"
	"fmt"
)

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. Returns the actual ID used (generated or provided).
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter in insertion order,
	// hydrated with their related records. An empty filter returns every
	// entity in the table.
	Fetch(filter map[string]any) ([]any, error)
}

// Error taxonomy roots. Every validation error wraps ErrInvalidArgument so
// callers can classify with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("entity not found")
)

// Table operation errors.
var (
	ErrInvalidID        = fmt.Errorf("%w: invalid entity ID", ErrInvalidArgument)
	ErrInvalidData      = fmt.Errorf("%w: invalid entity data", ErrInvalidArgument)
	ErrInvalidName      = fmt.Errorf("%w: invalid name", ErrInvalidArgument)
	ErrInvalidReference = fmt.Errorf("%w: referenced entity does not exist", ErrInvalidArgument)
	ErrDuplicateName    = fmt.Errorf("%w: name already in use", ErrInvalidArgument)
	ErrInvalidFilter    = fmt.Errorf("%w: invalid filter value type", ErrInvalidArgument)
	ErrInvalidScope     = fmt.Errorf("%w: invalid scope", ErrInvalidArgument)
)
