package query

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// Criterion is one field/operator/value predicate. Its JSON form is the
// filter wire format {"PropertyName", "Operator", "Value"}.
type Criterion struct {
	PropertyName string   `json:"PropertyName"`
	Operator     Operator `json:"Operator"`
	Value        string   `json:"Value"`
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s %s %q", c.PropertyName, c.Operator, c.Value)
}

// Request describes one listing call: filters, search, sort and the
// 1-based page to return.
type Request struct {
	Filters   []Criterion
	Search    string
	Page      int
	PageSize  int
	SortField string
	SortOrder string // "asc" or "desc", case-insensitive; empty means "asc"
}

// Result is one page of records.
type Result[T any] struct {
	Items []*T // never nil
	Total int  // records matching filters and search, before paging
}

// Plan is a validated Request bound to a Schema.
type Plan[T any] struct {
	predicates []predicate[T]
	search     string
	searchable []Field[T]
	sort       *Field[T]
	desc       bool
	offset     int
	limit      int
}

// Compile validates req against the schema. Every argument is checked before
// the Plan is returned, so applying it cannot fail.
func (s *Schema[T]) Compile(req Request) (*Plan[T], error) {
	if req.Page < 1 {
		return nil, fmt.Errorf("%w: page number must be at least 1, got %d", types.ErrInvalidArgument, req.Page)
	}
	if req.PageSize < 1 {
		return nil, fmt.Errorf("%w: page size must be at least 1, got %d", types.ErrInvalidArgument, req.PageSize)
	}
	order, err := ParseSortOrder(req.SortOrder)
	if err != nil {
		return nil, err
	}

	p := &Plan[T]{
		desc:   order == Descending,
		limit:  req.PageSize,
		offset: math.MaxInt,
	}
	if req.Page-1 <= math.MaxInt/req.PageSize {
		p.offset = (req.Page - 1) * req.PageSize
	}

	if req.SortField != "" {
		f, err := s.Field(req.SortField)
		if err != nil {
			return nil, fmt.Errorf("sort field: %w", err)
		}
		p.sort = &f
	}

	for _, c := range req.Filters {
		f, err := s.Field(c.PropertyName)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c, err)
		}
		op, err := ParseOperator(string(c.Operator))
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c, err)
		}
		pred, err := f.compile(op, c.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", c, err)
		}
		p.predicates = append(p.predicates, pred)
	}

	if term := strings.TrimSpace(req.Search); term != "" {
		p.search = cases.Fold().String(term)
		p.searchable = s.searchable
	}
	return p, nil
}

// Apply runs the plan over collection: filter, search, sort, then page.
// The collection and its records are not modified.
func (p *Plan[T]) Apply(collection []*T) *Result[T] {
	var fold cases.Caser
	if p.search != "" {
		fold = cases.Fold()
	}

	matched := make([]*T, 0, len(collection))
	for _, rec := range collection {
		if rec == nil || !p.matches(rec) {
			continue
		}
		if p.search != "" && !p.searchMatches(rec, fold) {
			continue
		}
		matched = append(matched, rec)
	}

	if p.sort != nil {
		compare := p.sort.compare
		if p.desc {
			slices.SortStableFunc(matched, func(a, b *T) int { return compare(b, a) })
		} else {
			slices.SortStableFunc(matched, compare)
		}
	}

	res := &Result[T]{Items: []*T{}, Total: len(matched)}
	if p.offset >= len(matched) {
		return res
	}
	end := len(matched)
	if p.limit < end-p.offset {
		end = p.offset + p.limit
	}
	res.Items = append(res.Items, matched[p.offset:end]...)
	return res
}

func (p *Plan[T]) matches(rec *T) bool {
	for _, pred := range p.predicates {
		if !pred(rec) {
			return false
		}
	}
	return true
}

func (p *Plan[T]) searchMatches(rec *T, fold cases.Caser) bool {
	for _, f := range p.searchable {
		if strings.Contains(fold.String(f.text(rec)), p.search) {
			return true
		}
	}
	return false
}

// Run compiles req against schema and applies it to collection.
func Run[T any](schema *Schema[T], collection []*T, req Request) (*Result[T], error) {
	plan, err := schema.Compile(req)
	if err != nil {
		return nil, err
	}
	return plan.Apply(collection), nil
}
