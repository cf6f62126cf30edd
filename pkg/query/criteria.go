package query

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// wireCriterion accepts any JSON scalar for Value so clients may send
// {"Value": 3} as well as {"Value": "3"}.
type wireCriterion struct {
	PropertyName string          `json:"PropertyName"`
	Operator     string          `json:"Operator"`
	Value        json.RawMessage `json:"Value"`
}

// ParseCriteria decodes a JSON array of filter criteria. Empty input and
// "null" decode to no criteria.
func ParseCriteria(data []byte) ([]Criterion, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var wire []wireCriterion
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: filters must be a JSON array of {PropertyName, Operator, Value}: %v",
			types.ErrInvalidArgument, err)
	}
	out := make([]Criterion, 0, len(wire))
	for i, w := range wire {
		value, err := scalarText(w.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %d: %v", types.ErrInvalidArgument, i, err)
		}
		out = append(out, Criterion{
			PropertyName: w.PropertyName,
			Operator:     Operator(w.Operator),
			Value:        value,
		})
	}
	return out, nil
}

func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("value must be a scalar, got %s", raw)
	}
	return string(raw), nil
}

// ParseCriterion parses the compact form "field:operator:value" used on the
// command line. The value may itself contain colons.
func ParseCriterion(s string) (Criterion, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Criterion{}, fmt.Errorf("%w: filter %q must have the form field:operator:value",
			types.ErrInvalidArgument, s)
	}
	return Criterion{PropertyName: parts[0], Operator: Operator(parts[1]), Value: parts[2]}, nil
}
