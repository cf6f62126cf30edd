package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/patch"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// tableNames lists the tables the CLI accepts, for error messages.
var tableNames = strings.Join(types.StandardTableNames, ", ")

// entity is the table-independent view of a service the commands work with.
type entity interface {
	get(id string) (any, error)
	list(req service.ListRequest) (*listing, error)
	create(data []byte) (string, error)
	update(id string, data []byte) error
	patch(id string, doc patch.Document) error
	delete(id string) error
}

// listing is one page of records with their summary rows for text output.
type listing struct {
	Items  any        `json:"items"`
	Total  int        `json:"total"`
	header []string   // column titles for text output
	rows   [][]string // one summary row per item
}

type adapter[T any] struct {
	svc     *service.Service[T]
	header  []string
	summary func(*T) []string
}

func (a adapter[T]) get(id string) (any, error) { return a.svc.GetByID(id) }

func (a adapter[T]) list(req service.ListRequest) (*listing, error) {
	res, err := a.svc.List(req)
	if err != nil {
		return nil, err
	}
	out := &listing{Items: res.Items, Total: res.Total, header: a.header}
	for _, rec := range res.Items {
		out.rows = append(out.rows, a.summary(rec))
	}
	return out, nil
}

func (a adapter[T]) create(data []byte) (string, error) {
	rec, err := decodeEntity[T](data)
	if err != nil {
		return "", err
	}
	return a.svc.Create(rec)
}

func (a adapter[T]) update(id string, data []byte) error {
	rec, err := decodeEntity[T](data)
	if err != nil {
		return err
	}
	return a.svc.Update(id, rec)
}

func (a adapter[T]) patch(id string, doc patch.Document) error { return a.svc.Patch(id, doc) }

func (a adapter[T]) delete(id string) error { return a.svc.Delete(id) }

func decodeEntity[T any](data []byte) (*T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", types.ErrInvalidData, err)
	}
	return &rec, nil
}

// openEntity binds the named table of store to its service.
func openEntity(store types.Store, table string) (entity, error) {
	switch table {
	case types.TableUsers:
		svc, err := service.NewUsers(store)
		if err != nil {
			return nil, err
		}
		return adapter[types.User]{
			svc:    svc,
			header: []string{"ID", "USER NAME", "EMAIL", "ROLE", "ACTIVE"},
			summary: func(u *types.User) []string {
				return []string{u.UserID, u.UserName, u.Email, u.RoleName, strconv.FormatBool(u.IsActive)}
			},
		}, nil
	case types.TableClaimRoles:
		svc, err := service.NewClaimRoleModels(store)
		if err != nil {
			return nil, err
		}
		return adapter[types.ClaimRoleModel]{
			svc:    svc,
			header: []string{"ID", "NAME", "CLAIM", "ENTITY", "ACTIONS", "PRIORITY", "ENTITLEMENTS"},
			summary: func(r *types.ClaimRoleModel) []string {
				return []string{r.RoleID, r.Name, r.ClaimType + "=" + r.ClaimValue, r.EntityName, layoutList(r.Action),
					strconv.FormatInt(r.Priority, 10), strconv.FormatInt(r.EntitlementCount, 10)}
			},
		}, nil
	case types.TableRoleEntitlements:
		svc, err := service.NewRoleEntitlements(store)
		if err != nil {
			return nil, err
		}
		return adapter[types.RoleEntitlement]{
			svc:    svc,
			header: []string{"ID", "ROLE", "ENTITLEMENT", "SCOPE", "ENABLED"},
			summary: func(e *types.RoleEntitlement) []string {
				return []string{e.EntitlementID, e.RoleName, e.Entitlement, e.Scope, strconv.FormatBool(e.Enabled)}
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s)", types.ErrTableNotFound, table, tableNames)
	}
}

func layoutList(actions []types.LayoutType) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return strings.Join(names, ",")
}
