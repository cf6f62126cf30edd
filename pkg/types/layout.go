package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// LayoutType is an action a claim role allows on an entity's screens. It is
// encoded as its number in JSON.
type LayoutType int

// Layout types.
const (
	LayoutList LayoutType = 1
	LayoutAdd  LayoutType = 2
	LayoutEdit LayoutType = 3
)

// LayoutTypes lists the recognized layout types in ascending order.
var LayoutTypes = []LayoutType{LayoutList, LayoutAdd, LayoutEdit}

var layoutNames = map[LayoutType]string{
	LayoutList: "list",
	LayoutAdd:  "add",
	LayoutEdit: "edit",
}

func (l LayoutType) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LayoutType(%d)", int(l))
}

// Valid reports whether l is a recognized layout type.
func (l LayoutType) Valid() bool {
	_, ok := layoutNames[l]
	return ok
}

// ParseLayoutType accepts a layout name ("list", "add", "edit", any case)
// or its number.
func ParseLayoutType(s string) (LayoutType, error) {
	s = strings.TrimSpace(s)
	for l, name := range layoutNames {
		if strings.EqualFold(name, s) {
			return l, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err == nil && LayoutType(n).Valid() {
		return LayoutType(n), nil
	}
	return 0, fmt.Errorf("%w: unknown layout type %q", ErrInvalidArgument, s)
}

// normalizeLayouts sorts actions and drops duplicates. It reports false if
// any action is not a recognized layout type.
func normalizeLayouts(actions []LayoutType) ([]LayoutType, bool) {
	out := make([]LayoutType, 0, len(actions))
	for _, a := range actions {
		if !a.Valid() {
			return actions, false
		}
		out = append(out, a)
	}
	slices.Sort(out)
	return slices.Compact(out), true
}
