package service

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/rolebook/pkg/patch"
	"github.com/mesh-intelligence/rolebook/pkg/query"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// UserSchema is the query schema for users.
var UserSchema = query.NewSchema("user",
	query.String("user_id", func(u *types.User) string { return u.UserID }),
	query.String("user_name", func(u *types.User) string { return u.UserName }),
	query.String("email", func(u *types.User) string { return u.Email }),
	query.String("display_name", func(u *types.User) string { return u.DisplayName }),
	query.String("role_id", func(u *types.User) string { return u.RoleID }),
	query.String("role_name", func(u *types.User) string { return u.RoleName }),
	query.Bool("is_active", func(u *types.User) bool { return u.IsActive }),
	query.Number("login_count", func(u *types.User) int64 { return u.LoginCount }),
	query.Time("created_at", func(u *types.User) time.Time { return u.CreatedAt }),
	query.Time("updated_at", func(u *types.User) time.Time { return u.UpdatedAt }),
).Searchable("user_name", "email", "display_name")

var userPatcher = patch.NewPatcher("user",
	patch.Value("user_name", func(u *types.User, v string) { u.UserName = v }),
	patch.Value("email", func(u *types.User, v string) { u.Email = v }).
		Removable(func(u *types.User) { u.Email = "" }),
	patch.Value("display_name", func(u *types.User, v string) { u.DisplayName = v }).
		Removable(func(u *types.User) { u.DisplayName = "" }),
	patch.Value("role_id", func(u *types.User, v string) { u.RoleID = v }).
		Removable(func(u *types.User) { u.RoleID = "" }),
	patch.Value("is_active", func(u *types.User, v bool) { u.IsActive = v }),
	patch.Value("login_count", func(u *types.User, v int64) { u.LoginCount = v }).
		Removable(func(u *types.User) { u.LoginCount = 0 }),
)

// NewUsers returns the user service bound to store.
func NewUsers(store types.Store) (*Service[types.User], error) {
	return newService(store, types.TableUsers, UserSchema, userPatcher)
}

// ClaimRoleModelSchema is the query schema for claim roles.
var ClaimRoleModelSchema = query.NewSchema("claim_role",
	query.String("role_id", func(r *types.ClaimRoleModel) string { return r.RoleID }),
	query.String("name", func(r *types.ClaimRoleModel) string { return r.Name }),
	query.String("claim_type", func(r *types.ClaimRoleModel) string { return r.ClaimType }),
	query.String("claim_value", func(r *types.ClaimRoleModel) string { return r.ClaimValue }),
	query.String("entity_name", func(r *types.ClaimRoleModel) string { return r.EntityName }),
	query.IntSet("action", parseLayout, layoutCodes),
	query.Number("action_count", func(r *types.ClaimRoleModel) int64 { return int64(len(r.Action)) }),
	query.String("description", func(r *types.ClaimRoleModel) string { return r.Description }),
	query.Number("priority", func(r *types.ClaimRoleModel) int64 { return r.Priority }),
	query.Number("entitlement_count", func(r *types.ClaimRoleModel) int64 { return r.EntitlementCount }),
	query.Time("created_at", func(r *types.ClaimRoleModel) time.Time { return r.CreatedAt }),
	query.Time("updated_at", func(r *types.ClaimRoleModel) time.Time { return r.UpdatedAt }),
).Searchable("name", "claim_type", "claim_value", "entity_name", "description")

// parseLayout reads an action filter value given as a layout name or number.
func parseLayout(s string) (int64, error) {
	l, err := types.ParseLayoutType(s)
	return int64(l), err
}

func layoutCodes(r *types.ClaimRoleModel) []int64 {
	codes := make([]int64, len(r.Action))
	for i, a := range r.Action {
		codes[i] = int64(a)
	}
	return codes
}

var claimRolePatcher = patch.NewPatcher("claim_role",
	patch.Value("name", func(r *types.ClaimRoleModel, v string) { r.Name = v }),
	patch.Value("claim_type", func(r *types.ClaimRoleModel, v string) { r.ClaimType = v }),
	patch.Value("claim_value", func(r *types.ClaimRoleModel, v string) { r.ClaimValue = v }),
	patch.Value("entity_name", func(r *types.ClaimRoleModel, v string) { r.EntityName = v }).
		Removable(func(r *types.ClaimRoleModel) { r.EntityName = "" }),
	patch.Value("action", func(r *types.ClaimRoleModel, v []types.LayoutType) { r.Action = v }).
		Removable(func(r *types.ClaimRoleModel) { r.Action = nil }),
	patch.Value("description", func(r *types.ClaimRoleModel, v string) { r.Description = v }).
		Removable(func(r *types.ClaimRoleModel) { r.Description = "" }),
	patch.Value("priority", func(r *types.ClaimRoleModel, v int64) { r.Priority = v }).
		Removable(func(r *types.ClaimRoleModel) { r.Priority = 0 }),
)

// NewClaimRoleModels returns the claim role service bound to store.
func NewClaimRoleModels(store types.Store) (*Service[types.ClaimRoleModel], error) {
	return newService(store, types.TableClaimRoles, ClaimRoleModelSchema, claimRolePatcher)
}

// RoleEntitlementSchema is the query schema for role entitlements.
var RoleEntitlementSchema = query.NewSchema("role_entitlement",
	query.String("entitlement_id", func(e *types.RoleEntitlement) string { return e.EntitlementID }),
	query.String("role_id", func(e *types.RoleEntitlement) string { return e.RoleID }),
	query.String("role_name", func(e *types.RoleEntitlement) string { return e.RoleName }),
	query.String("entitlement", func(e *types.RoleEntitlement) string { return e.Entitlement }),
	query.Enum("scope", types.Scopes, func(e *types.RoleEntitlement) string { return e.Scope }),
	query.Bool("enabled", func(e *types.RoleEntitlement) bool { return e.Enabled }),
	query.Time("created_at", func(e *types.RoleEntitlement) time.Time { return e.CreatedAt }),
	query.Time("updated_at", func(e *types.RoleEntitlement) time.Time { return e.UpdatedAt }),
).Searchable("entitlement", "role_name")

var roleEntitlementPatcher = patch.NewPatcher("role_entitlement",
	patch.Value("role_id", func(e *types.RoleEntitlement, v string) { e.RoleID = v }),
	patch.Value("entitlement", func(e *types.RoleEntitlement, v string) { e.Entitlement = v }),
	patch.Value("scope", func(e *types.RoleEntitlement, v string) { e.Scope = v }).
		Removable(func(e *types.RoleEntitlement) { e.Scope = types.ScopeGlobal }),
	patch.Value("enabled", func(e *types.RoleEntitlement, v bool) { e.Enabled = v }),
)

// NewRoleEntitlements returns the role entitlement service bound to store.
func NewRoleEntitlements(store types.Store) (*Service[types.RoleEntitlement], error) {
	return newService(store, types.TableRoleEntitlements, RoleEntitlementSchema, roleEntitlementPatcher)
}

// PatchFields returns the sorted names of the fields a patch document may
// change on table.
func PatchFields(table string) ([]string, error) {
	switch table {
	case types.TableUsers:
		return userPatcher.Fields(), nil
	case types.TableClaimRoles:
		return claimRolePatcher.Fields(), nil
	case types.TableRoleEntitlements:
		return roleEntitlementPatcher.Fields(), nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrTableNotFound, table)
}
