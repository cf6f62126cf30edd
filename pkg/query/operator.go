package query

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// Operator names a filter comparison.
type Operator string

// Recognized operators. Names are matched case-insensitively on input.
const (
	Equal              Operator = "Equal"
	NotEqual           Operator = "NotEqual"
	GreaterThan        Operator = "GreaterThan"
	GreaterThanOrEqual Operator = "GreaterThanOrEqual"
	LessThan           Operator = "LessThan"
	LessThanOrEqual    Operator = "LessThanOrEqual"
	Contains           Operator = "Contains"
	StartsWith         Operator = "StartsWith"
	EndsWith           Operator = "EndsWith"
)

// Operators lists every recognized operator.
var Operators = []Operator{
	Equal, NotEqual,
	GreaterThan, GreaterThanOrEqual,
	LessThan, LessThanOrEqual,
	Contains, StartsWith, EndsWith,
}

var orderedOperators = []Operator{Equal, NotEqual, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual}

var textOperators = append(append([]Operator{}, orderedOperators...), Contains, StartsWith, EndsWith)

// ParseOperator resolves s to a recognized Operator, ignoring case.
func ParseOperator(s string) (Operator, error) {
	for _, op := range Operators {
		if strings.EqualFold(string(op), strings.TrimSpace(s)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: unknown operator %q", types.ErrInvalidArgument, s)
}

// holds reports whether a three-way comparison result c satisfies op.
// Only ordered operators are meaningful here.
func holds(op Operator, c int) bool {
	switch op {
	case Equal:
		return c == 0
	case NotEqual:
		return c != 0
	case GreaterThan:
		return c > 0
	case GreaterThanOrEqual:
		return c >= 0
	case LessThan:
		return c < 0
	case LessThanOrEqual:
		return c <= 0
	}
	return false
}

func supports(ops []Operator, op Operator) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortOrder resolves s to a SortOrder, ignoring case. An empty string
// means Ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(s) {
	case "", string(Ascending):
		return Ascending, nil
	case string(Descending):
		return Descending, nil
	}
	return "", fmt.Errorf("%w: sort order must be %q or %q, got %q",
		types.ErrInvalidArgument, Ascending, Descending, s)
}
