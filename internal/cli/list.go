package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/query"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

const defaultPageSize = 10

type listFlags struct {
	filters   []string
	where     []string
	search    string
	page      int
	pageSize  int
	sortField string
	sortOrder string
}

func newListCmd(a *app) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list <table>",
		Short: "List entities with filtering, search, sorting and paging",
		Long: `List prints one page of a table. Filters use the form field:operator:value
and may be repeated; all filters must match. Search matches any searchable
text field, ignoring case.

Operators (case-insensitive): ` + operatorNames() + `
Valid table names: ` + tableNames,
		Example: `  rolebook list users --filter is_active:Equal:true --sort user_name
  rolebook list role_entitlements --where role_id=0190f5a2-... --json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			return a.withStore(func(store types.Store) error {
				e, err := openEntity(store, args[0])
				if err != nil {
					return err
				}
				page, err := e.list(req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.jsonMode {
					return printJSON(out, page)
				}
				if err := printTable(out, page.header, page.rows); err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%d of %d\n", len(page.rows), page.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "filter as field:operator:value (repeatable)")
	cmd.Flags().StringArrayVar(&f.where, "where", nil, "storage filter as key=value, e.g. role_id=<id> (repeatable)")
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive text search")
	cmd.Flags().IntVar(&f.page, "page", 1, "1-based page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", defaultPageSize, "records per page")
	cmd.Flags().StringVar(&f.sortField, "sort", "", "field to sort by")
	cmd.Flags().StringVar(&f.sortOrder, "order", "", "sort order: asc or desc")
	return cmd
}

func (f *listFlags) request() (service.ListRequest, error) {
	req := service.ListRequest{Request: query.Request{
		Search:    f.search,
		Page:      f.page,
		PageSize:  f.pageSize,
		SortField: f.sortField,
		SortOrder: f.sortOrder,
	}}
	for _, s := range f.filters {
		c, err := query.ParseCriterion(s)
		if err != nil {
			return service.ListRequest{}, err
		}
		req.Filters = append(req.Filters, c)
	}
	for _, s := range f.where {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return service.ListRequest{}, usageError("--where %q must have the form key=value", s)
		}
		if req.Where == nil {
			req.Where = make(map[string]any)
		}
		req.Where[key] = value
	}
	return req, nil
}

func operatorNames() string {
	names := make([]string, len(query.Operators))
	for i, op := range query.Operators {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}
