package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// Kind is the declared type of a schema field. It decides how filter values
// are parsed and which operators apply.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindTime
	KindEnum
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindEnum:
		return "enum"
	case KindSet:
		return "set"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// predicate reports whether a record satisfies one compiled criterion.
type predicate[T any] func(*T) bool

// Field is a named, typed accessor on entity type T. Build fields with
// String, Number, Bool, Time, Enum or IntSet.
type Field[T any] struct {
	name    string
	kind    Kind
	text    func(*T) string // set for string and enum fields
	compare func(a, b *T) int
	compile func(op Operator, raw string) (predicate[T], error)
}

// Name returns the field's canonical name.
func (f Field[T]) Name() string { return f.name }

// Kind returns the field's declared kind.
func (f Field[T]) Kind() Kind { return f.kind }

func (f Field[T]) unsupported(op Operator) error {
	return fmt.Errorf("%w: operator %s does not apply to %s field %q",
		types.ErrInvalidArgument, op, f.kind, f.name)
}

func (f Field[T]) badValue(raw string, err error) error {
	return fmt.Errorf("%w: value %q for %s field %q: %v",
		types.ErrInvalidArgument, raw, f.kind, f.name, err)
}

// String declares a text field. Ordering is byte-wise lexicographic;
// Equal and the substring operators are case-sensitive.
func String[T any](name string, get func(*T) string) Field[T] {
	f := Field[T]{name: name, kind: KindString, text: get}
	f.compare = func(a, b *T) int { return strings.Compare(get(a), get(b)) }
	f.compile = func(op Operator, raw string) (predicate[T], error) {
		if !supports(textOperators, op) {
			return nil, f.unsupported(op)
		}
		return textPredicate(op, raw, get), nil
	}
	return f
}

func textPredicate[T any](op Operator, raw string, get func(*T) string) predicate[T] {
	switch op {
	case Contains:
		return func(r *T) bool { return strings.Contains(get(r), raw) }
	case StartsWith:
		return func(r *T) bool { return strings.HasPrefix(get(r), raw) }
	case EndsWith:
		return func(r *T) bool { return strings.HasSuffix(get(r), raw) }
	}
	return func(r *T) bool { return holds(op, strings.Compare(get(r), raw)) }
}

// Number declares an integer field. Filter values are parsed as decimals, so
// fractional bounds such as "2.5" compare exactly against integer values.
func Number[T any](name string, get func(*T) int64) Field[T] {
	f := Field[T]{name: name, kind: KindNumber}
	f.compare = func(a, b *T) int { return cmp.Compare(get(a), get(b)) }
	f.compile = func(op Operator, raw string) (predicate[T], error) {
		if !supports(orderedOperators, op) {
			return nil, f.unsupported(op)
		}
		bound, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, f.badValue(raw, err)
		}
		return func(r *T) bool {
			return holds(op, decimal.NewFromInt(get(r)).Cmp(bound))
		}, nil
	}
	return f
}

// Bool declares a boolean field. Only Equal and NotEqual apply; false
// orders before true.
func Bool[T any](name string, get func(*T) bool) Field[T] {
	f := Field[T]{name: name, kind: KindBool}
	f.compare = func(a, b *T) int { return cmp.Compare(boolRank(get(a)), boolRank(get(b))) }
	f.compile = func(op Operator, raw string) (predicate[T], error) {
		if op != Equal && op != NotEqual {
			return nil, f.unsupported(op)
		}
		want, err := cast.ToBoolE(strings.TrimSpace(raw))
		if err != nil {
			return nil, f.badValue(raw, err)
		}
		return func(r *T) bool { return (get(r) == want) == (op == Equal) }, nil
	}
	return f
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Time declares a timestamp field. Filter values accept RFC 3339 and the
// other layouts understood by cast.ToTimeE; values without a zone are UTC.
func Time[T any](name string, get func(*T) time.Time) Field[T] {
	f := Field[T]{name: name, kind: KindTime}
	f.compare = func(a, b *T) int { return get(a).Compare(get(b)) }
	f.compile = func(op Operator, raw string) (predicate[T], error) {
		if !supports(orderedOperators, op) {
			return nil, f.unsupported(op)
		}
		bound, err := cast.ToTimeE(strings.TrimSpace(raw))
		if err != nil {
			return nil, f.badValue(raw, err)
		}
		return func(r *T) bool { return holds(op, get(r).Compare(bound)) }, nil
	}
	return f
}

// Enum declares a text field restricted to values. Ordering follows the
// declaration order of values. Comparison operators require a declared
// value (matched case-insensitively); substring operators accept any text.
func Enum[T any](name string, values []string, get func(*T) string) Field[T] {
	rank := make(map[string]int, len(values))
	for i, v := range values {
		rank[v] = i
	}
	f := Field[T]{name: name, kind: KindEnum, text: get}
	ordinal := func(r *T) int {
		if i, ok := rank[get(r)]; ok {
			return i
		}
		return len(values)
	}
	f.compare = func(a, b *T) int { return cmp.Compare(ordinal(a), ordinal(b)) }
	f.compile = func(op Operator, raw string) (predicate[T], error) {
		if !supports(textOperators, op) {
			return nil, f.unsupported(op)
		}
		if !supports(orderedOperators, op) {
			return textPredicate(op, raw, get), nil
		}
		for i, v := range values {
			if strings.EqualFold(v, raw) {
				return func(r *T) bool { return holds(op, cmp.Compare(ordinal(r), i)) }, nil
			}
		}
		return nil, f.badValue(raw, fmt.Errorf("must be one of %s", strings.Join(values, ", ")))
	}
	return f
}

// IntSet declares a field holding a set of integer codes. Contains keeps
// records whose set includes the value; Equal and NotEqual compare the whole
// set against a comma-separated list. Values are read with parse, so codes
// may have names. Sets order by size, then element by element.
func IntSet[T any](name string, parse func(string) (int64, error), get func(*T) []int64) Field[T] {
	f := Field[T]{name: name, kind: KindSet}
	f.compare = func(a, b *T) int {
		x, y := get(a), get(b)
		if c := cmp.Compare(len(x), len(y)); c != 0 {
			return c
		}
		return slices.Compare(x, y)
	}
	f.compile = func(op Operator, raw string) (predicate[T], error) {
		switch op {
		case Contains:
			v, err := parse(raw)
			if err != nil {
				return nil, f.badValue(raw, err)
			}
			return func(r *T) bool { return slices.Contains(get(r), v) }, nil
		case Equal, NotEqual:
			want := []int64{}
			for _, part := range strings.Split(raw, ",") {
				if strings.TrimSpace(part) == "" {
					continue
				}
				v, err := parse(part)
				if err != nil {
					return nil, f.badValue(raw, err)
				}
				want = append(want, v)
			}
			slices.Sort(want)
			want = slices.Compact(want)
			return func(r *T) bool {
				got := slices.Clone(get(r))
				slices.Sort(got)
				return slices.Equal(slices.Compact(got), want) == (op == Equal)
			}, nil
		}
		return nil, f.unsupported(op)
	}
	return f
}
