package query

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// Schema maps field names of entity type T to typed accessors. Lookups are
// case-insensitive. A Schema is immutable once built and safe for
// concurrent use.
type Schema[T any] struct {
	entity     string
	fields     map[string]Field[T]
	names      []string
	searchable []Field[T]
}

// NewSchema builds the schema for entity from fields. It panics on a
// duplicate field name; schemas are built once at startup.
func NewSchema[T any](entity string, fields ...Field[T]) *Schema[T] {
	s := &Schema[T]{
		entity: entity,
		fields: make(map[string]Field[T], len(fields)),
	}
	for _, f := range fields {
		key := strings.ToLower(f.name)
		if _, dup := s.fields[key]; dup {
			panic(fmt.Sprintf("query: duplicate field %q in %s schema", f.name, entity))
		}
		s.fields[key] = f
		s.names = append(s.names, f.name)
	}
	return s
}

// Searchable marks the named text fields as participating in free-text
// search. It panics on unknown or non-text fields.
func (s *Schema[T]) Searchable(names ...string) *Schema[T] {
	for _, name := range names {
		f, ok := s.fields[strings.ToLower(name)]
		if !ok {
			panic(fmt.Sprintf("query: searchable field %q not in %s schema", name, s.entity))
		}
		if f.text == nil {
			panic(fmt.Sprintf("query: searchable field %q in %s schema is %s, not text", name, s.entity, f.kind))
		}
		s.searchable = append(s.searchable, f)
	}
	return s
}

// Entity returns the entity name the schema describes.
func (s *Schema[T]) Entity() string { return s.entity }

// FieldNames returns the canonical field names in declaration order.
func (s *Schema[T]) FieldNames() []string {
	return append([]string(nil), s.names...)
}

// SearchableNames returns the names of the fields free-text search reads.
func (s *Schema[T]) SearchableNames() []string {
	names := make([]string, len(s.searchable))
	for i, f := range s.searchable {
		names[i] = f.name
	}
	return names
}

// Field looks up a field by name. Unknown names yield an error wrapping
// types.ErrInvalidArgument.
func (s *Schema[T]) Field(name string) (Field[T], error) {
	f, ok := s.fields[strings.ToLower(name)]
	if !ok {
		return Field[T]{}, fmt.Errorf("%w: %s has no field %q", types.ErrInvalidArgument, s.entity, name)
	}
	return f, nil
}
