// Package query implements the filter, search, sort and paginate pipeline
// shared by every rolebook entity service.
//
// An entity registers a Schema built from typed field accessors once at
// startup. A Request is compiled against the schema into a Plan; compilation
// validates every argument, so a Plan never fails part way through. Applying
// a Plan reads the collection and returns a fresh page without touching the
// input.
//
//	schema := query.NewSchema("role",
//	    query.String("name", func(r *Role) string { return r.Name }),
//	    query.Number("priority", func(r *Role) int64 { return r.Priority }),
//	).Searchable("name")
//
//	res, err := query.Run(schema, roles, query.Request{
//	    Page: 1, PageSize: 20, SortField: "priority", SortOrder: "desc",
//	})
package query
