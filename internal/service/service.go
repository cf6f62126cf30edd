// Package service exposes the CRUD operations of each rolebook entity over a
// store table: get by id, list through the query pipeline, create, full
// update, partial patch and delete.
package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/pkg/patch"
	"github.com/mesh-intelligence/rolebook/pkg/query"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// ListRequest selects a page of entities. Where is passed to the table's
// Fetch as a store-side prefilter (for example role_id); the embedded
// query.Request is applied to the fetched records.
type ListRequest struct {
	query.Request
	Where map[string]any
}

// Service implements the CRUD operations for entity type T on one table.
// It holds no state beyond the table handle and is safe for concurrent use.
type Service[T any] struct {
	entity  string
	table   types.Table
	schema  *query.Schema[T]
	patcher *patch.Patcher[T]
	log     *logrus.Entry
}

func newService[T any](store types.Store, tableName string, schema *query.Schema[T], patcher *patch.Patcher[T]) (*Service[T], error) {
	tbl, err := store.GetTable(tableName)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", tableName, err)
	}
	return &Service[T]{
		entity:  schema.Entity(),
		table:   tbl,
		schema:  schema,
		patcher: patcher,
		log:     log.Get().WithFields(logrus.Fields{"prefix": "service", "entity": schema.Entity()}),
	}, nil
}

// Schema returns the query schema used by List.
func (s *Service[T]) Schema() *query.Schema[T] { return s.schema }

// GetByID returns the entity with the given id.
func (s *Service[T]) GetByID(id string) (*T, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	v, err := s.table.Get(id)
	if err != nil {
		return nil, err
	}
	return s.cast(v)
}

// List fetches the entities matching req.Where and runs req through the
// query pipeline. Every argument is validated before the store is read.
func (s *Service[T]) List(req ListRequest) (*query.Result[T], error) {
	plan, err := s.schema.Compile(req.Request)
	if err != nil {
		return nil, err
	}
	rows, err := s.table.Fetch(req.Where)
	if err != nil {
		return nil, err
	}
	collection := make([]*T, 0, len(rows))
	for _, row := range rows {
		rec, err := s.cast(row)
		if err != nil {
			return nil, err
		}
		collection = append(collection, rec)
	}
	return plan.Apply(collection), nil
}

// Create stores rec under a newly generated id and returns that id. Any id
// already set on rec is replaced. On success rec holds what was stored: the
// new id, the timestamps and any normalized fields such as a trimmed name.
func (s *Service[T]) Create(rec *T) (string, error) {
	if rec == nil {
		return "", types.ErrInvalidData
	}
	id, err := s.table.Set("", rec)
	if err != nil {
		return "", err
	}
	s.log.WithField("id", id).Debug("created")
	return id, nil
}

// Update replaces the stored entity with rec. The entity must exist. Like
// Create, it writes the stored timestamps and normalized fields back to rec.
func (s *Service[T]) Update(id string, rec *T) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if rec == nil {
		return types.ErrInvalidData
	}
	if _, err := s.table.Get(id); err != nil {
		return err
	}
	if _, err := s.table.Set(id, rec); err != nil {
		return err
	}
	s.log.WithField("id", id).Debug("updated")
	return nil
}

// Patch applies doc to the stored entity. The document is validated against
// the patchable fields before the entity is read; a nil or empty document
// is rejected.
func (s *Service[T]) Patch(id string, doc patch.Document) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if err := s.patcher.Validate(doc); err != nil {
		return err
	}
	current, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.patcher.Apply(current, doc); err != nil {
		return err
	}
	if _, err := s.table.Set(id, current); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"id": id, "ops": len(doc)}).Debug("patched")
	return nil
}

// Delete removes the entity with the given id.
func (s *Service[T]) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if err := s.table.Delete(id); err != nil {
		return err
	}
	s.log.WithField("id", id).Debug("deleted")
	return nil
}

func (s *Service[T]) cast(v any) (*T, error) {
	rec, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("%s table returned %T", s.entity, v)
	}
	return rec, nil
}
