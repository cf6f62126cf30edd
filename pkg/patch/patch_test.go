package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

type account struct {
	Name   string
	Email  string
	Logins int64
	Active bool
}

var accountPatcher = NewPatcher("account",
	Value("name", func(a *account, v string) { a.Name = v }),
	Value("email", func(a *account, v string) { a.Email = v }).
		Removable(func(a *account) { a.Email = "" }),
	Value("logins", func(a *account, v int64) { a.Logins = v }),
	Value("active", func(a *account, v bool) { a.Active = v }),
)

func mustParse(t *testing.T, s string) Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want account
	}{
		{
			name: "replace string",
			doc:  `[{"op":"replace","path":"/name","value":"grace"}]`,
			want: account{Name: "grace", Email: "ada@example.com", Logins: 3, Active: true},
		},
		{
			name: "add behaves as replace",
			doc:  `[{"op":"add","path":"/logins","value":7}]`,
			want: account{Name: "ada", Email: "ada@example.com", Logins: 7, Active: true},
		},
		{
			name: "remove resets removable field",
			doc:  `[{"op":"remove","path":"/email"}]`,
			want: account{Name: "ada", Logins: 3, Active: true},
		},
		{
			name: "operations apply in order",
			doc:  `[{"op":"replace","path":"/name","value":"x"},{"op":"Replace","path":"/name","value":"y"},{"op":"replace","path":"/active","value":false}]`,
			want: account{Name: "y", Email: "ada@example.com", Logins: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := account{Name: "ada", Email: "ada@example.com", Logins: 3, Active: true}
			require.NoError(t, accountPatcher.Apply(&a, mustParse(t, tt.doc)))
			assert.Equal(t, tt.want, a)
		})
	}
}

func TestApplyRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{name: "nil document", doc: nil},
		{name: "empty document", doc: Document{}},
		{name: "unknown field", doc: Document{{Op: OpReplace, Path: "/password", Value: []byte(`"x"`)}}},
		{name: "nested path", doc: Document{{Op: OpReplace, Path: "/name/first", Value: []byte(`"x"`)}}},
		{name: "path without slash", doc: Document{{Op: OpReplace, Path: "name", Value: []byte(`"x"`)}}},
		{name: "unsupported op", doc: Document{{Op: "move", Path: "/name"}}},
		{name: "missing value", doc: Document{{Op: OpReplace, Path: "/name"}}},
		{name: "remove non-removable field", doc: Document{{Op: OpRemove, Path: "/name"}}},
		{name: "wrong value type", doc: Document{{Op: OpReplace, Path: "/logins", Value: []byte(`"many"`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := account{Name: "ada", Logins: 3}
			err := accountPatcher.Apply(&a, tt.doc)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
			assert.Equal(t, account{Name: "ada", Logins: 3}, a, "target must be untouched")
		})
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	a := account{Name: "ada", Logins: 3}
	doc := Document{
		{Op: OpReplace, Path: "/name", Value: []byte(`"grace"`)},
		{Op: OpReplace, Path: "/logins", Value: []byte(`"oops"`)},
	}
	require.Error(t, accountPatcher.Apply(&a, doc))
	assert.Equal(t, "ada", a.Name)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := accountPatcher.Validate(Document{
		{Op: OpReplace, Path: "/password", Value: []byte(`"x"`)},
		{Op: "copy", Path: "/name"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
	assert.Contains(t, err.Error(), "copy")
}

func TestValidateChecksValueTypes(t *testing.T) {
	err := accountPatcher.Validate(Document{
		{Op: OpReplace, Path: "/active", Value: []byte(`"yes"`)},
		{Op: OpAdd, Path: "/logins", Value: []byte(`2.5`)},
		{Op: OpReplace, Path: "/name", Value: []byte(`"fine"`)},
	})
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Contains(t, err.Error(), `"active"`)
	assert.Contains(t, err.Error(), `"logins"`)
	assert.NotContains(t, err.Error(), `"name"`)
}

func TestFieldsAreSorted(t *testing.T) {
	assert.Equal(t, []string{"active", "email", "logins", "name"}, accountPatcher.Fields())
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte("  "))
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = Parse([]byte(`{"op":"replace"}`))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestReplaceAndEscapedPath(t *testing.T) {
	p := NewPatcher("odd", Value("a/b", func(a *account, v string) { a.Name = v }))
	op, err := Replace("a~1b", "z")
	require.NoError(t, err)
	var a account
	require.NoError(t, p.Apply(&a, Document{op}))
	assert.Equal(t, "z", a.Name)
}
