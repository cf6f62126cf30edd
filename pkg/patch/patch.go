// Package patch applies partial-update documents to entities.
//
// A document is a JSON array of RFC 6902 style operations restricted to
// top-level fields: {"op": "replace", "path": "/display_name", "value": "Ada"}.
// Each entity declares a Patcher listing the fields it lets callers change;
// a document is validated against that list in full before any field is
// written.
package patch

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// Op is a patch operation kind.
type Op string

// Supported operations. Add on a top-level field behaves as Replace.
const (
	OpReplace Op = "replace"
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
)

// Operation is one entry of a patch document.
type Operation struct {
	Op    Op              `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Document is an ordered list of operations.
type Document []Operation

// Parse decodes a patch document. Empty input and "null" yield a nil
// Document, which Apply rejects as missing.
func Parse(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: patch document must be a JSON array of operations: %v",
			types.ErrInvalidArgument, err)
	}
	return doc, nil
}

// Replace builds a replace operation for field with value encoded as JSON.
func Replace(field string, value any) (Operation, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Operation{}, fmt.Errorf("encoding value for %s: %w", field, err)
	}
	return Operation{Op: OpReplace, Path: "/" + field, Value: raw}, nil
}

// Field describes how one patchable field of T is merged.
type Field[T any] struct {
	name  string
	check func(json.RawMessage) error // decodes a value without assigning it
	set   func(*T, json.RawMessage) error
	reset func(*T) // nil when the field may not be removed
}

// Value declares a patchable field whose JSON value decodes into V.
func Value[T any, V any](name string, assign func(*T, V)) Field[T] {
	return Field[T]{
		name: name,
		check: func(raw json.RawMessage) error {
			var v V
			return json.Unmarshal(raw, &v)
		},
		set: func(t *T, raw json.RawMessage) error {
			var v V
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			assign(t, v)
			return nil
		},
	}
}

// Removable marks the field as clearable by a remove operation, which sets
// it to the zero value of its type.
func (f Field[T]) Removable(reset func(*T)) Field[T] {
	f.reset = reset
	return f
}

// Patcher applies documents to entities of type T.
type Patcher[T any] struct {
	entity string
	fields map[string]Field[T]
}

// NewPatcher declares the patchable fields of entity.
func NewPatcher[T any](entity string, fields ...Field[T]) *Patcher[T] {
	p := &Patcher[T]{entity: entity, fields: make(map[string]Field[T], len(fields))}
	for _, f := range fields {
		p.fields[f.name] = f
	}
	return p
}

// Fields returns the names of the patchable fields in sorted order.
func (p *Patcher[T]) Fields() []string {
	names := make([]string, 0, len(p.fields))
	for name := range p.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// step is a validated operation ready to apply.
type step[T any] struct {
	field Field[T]
	op    Op
	value json.RawMessage
}

// Validate checks every operation of doc against the declared fields,
// including that each value decodes into the field's type, and reports all
// problems together.
func (p *Patcher[T]) Validate(doc Document) error {
	_, err := p.plan(doc)
	return err
}

func (p *Patcher[T]) plan(doc Document) ([]step[T], error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: patch document is missing", types.ErrInvalidArgument)
	}
	var result *multierror.Error
	steps := make([]step[T], 0, len(doc))
	for i, op := range doc {
		name, ok := fieldName(op.Path)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("operation %d: path %q must name a top-level field", i, op.Path))
			continue
		}
		f, ok := p.fields[name]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("operation %d: %s has no patchable field %q", i, p.entity, name))
			continue
		}
		kind := Op(strings.ToLower(string(op.Op)))
		switch kind {
		case OpReplace, OpAdd:
			if len(bytes.TrimSpace(op.Value)) == 0 {
				result = multierror.Append(result, fmt.Errorf("operation %d: %s %s requires a value", i, kind, op.Path))
				continue
			}
			if err := f.check(op.Value); err != nil {
				result = multierror.Append(result, fmt.Errorf("operation %d: value for %q: %v", i, name, err))
				continue
			}
		case OpRemove:
			if f.reset == nil {
				result = multierror.Append(result, fmt.Errorf("operation %d: field %q cannot be removed", i, name))
				continue
			}
		default:
			result = multierror.Append(result, fmt.Errorf("operation %d: unsupported op %q", i, op.Op))
			continue
		}
		steps = append(steps, step[T]{field: f, op: kind, value: op.Value})
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	return steps, nil
}

// Apply validates doc and merges it into target. Nothing is written to
// target unless every operation succeeds.
func (p *Patcher[T]) Apply(target *T, doc Document) error {
	if target == nil {
		return fmt.Errorf("%w: patch target is nil", types.ErrInvalidArgument)
	}
	steps, err := p.plan(doc)
	if err != nil {
		return err
	}
	working := *target
	for _, s := range steps {
		if s.op == OpRemove {
			s.field.reset(&working)
			continue
		}
		if err := s.field.set(&working, s.value); err != nil {
			return fmt.Errorf("%w: field %q: %v", types.ErrInvalidArgument, s.field.name, err)
		}
	}
	*target = working
	return nil
}

// fieldName extracts the single segment of a JSON pointer, unescaping ~1
// and ~0.
func fieldName(path string) (string, bool) {
	if !strings.HasPrefix(path, "/") {
		return "", false
	}
	name := path[1:]
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	name = strings.ReplaceAll(name, "~1", "/")
	name = strings.ReplaceAll(name, "~0", "~")
	return name, true
}
