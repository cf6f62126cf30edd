// Package authz answers entitlement checks for users from the roles and
// entitlements held in a store, using a casbin RBAC enforcer.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

//go:embed model.conf
var modelText string

// Subjects are namespaced so a user id can never collide with a role name.
const (
	userPrefix = "user:"
	rolePrefix = "role:"
)

// Enforcer is a point-in-time snapshot of the store's grants. Build a new
// one with Load after roles, entitlements or users change.
type Enforcer struct {
	enforcer *casbin.Enforcer
	log      *logrus.Entry
}

// Load reads every enabled entitlement and every active user with a role
// from store and builds an Enforcer over them.
func Load(store types.Store) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("loading authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("creating enforcer: %w", err)
	}

	ents, err := fetch(store, types.TableRoleEntitlements, map[string]any{"enabled": true})
	if err != nil {
		return nil, err
	}
	var policies [][]string
	seen := make(map[string]bool)
	for _, row := range ents {
		ent, ok := row.(*types.RoleEntitlement)
		if !ok || ent.RoleName == "" {
			continue
		}
		rule := []string{rolePrefix + ent.RoleName, ent.Entitlement, ent.Scope}
		if key := strings.Join(rule, "\x00"); !seen[key] {
			seen[key] = true
			policies = append(policies, rule)
		}
	}
	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			return nil, fmt.Errorf("adding policies: %w", err)
		}
	}

	users, err := fetch(store, types.TableUsers, nil)
	if err != nil {
		return nil, err
	}
	var groupings [][]string
	for _, row := range users {
		u, ok := row.(*types.User)
		if !ok || !u.IsActive || u.RoleName == "" {
			continue
		}
		groupings = append(groupings, []string{userPrefix + u.UserID, rolePrefix + u.RoleName})
	}
	if len(groupings) > 0 {
		if _, err := e.AddGroupingPolicies(groupings); err != nil {
			return nil, fmt.Errorf("adding role assignments: %w", err)
		}
	}

	l := log.Get().WithField("prefix", "authz")
	l.WithFields(logrus.Fields{"policies": len(policies), "assignments": len(groupings)}).Debug("enforcer loaded")
	return &Enforcer{enforcer: e, log: l}, nil
}

func fetch(store types.Store, table string, filter map[string]any) ([]any, error) {
	tbl, err := store.GetTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := tbl.Fetch(filter)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return rows, nil
}

// Allowed reports whether the user holds entitlement in scope. An empty
// scope means global. Entitlement patterns such as "reports:*" match by
// prefix, and a global grant satisfies every scope.
func (e *Enforcer) Allowed(userID, entitlement, scope string) (bool, error) {
	if userID == "" {
		return false, types.ErrInvalidID
	}
	if strings.TrimSpace(entitlement) == "" {
		return false, types.ErrInvalidName
	}
	if scope == "" {
		scope = types.ScopeGlobal
	}
	if !types.ValidScope(scope) {
		return false, fmt.Errorf("%w: %q", types.ErrInvalidScope, scope)
	}
	ok, err := e.enforcer.Enforce(userPrefix+userID, entitlement, scope)
	if err != nil {
		return false, fmt.Errorf("enforcing: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"user": userID, "entitlement": entitlement, "scope": scope, "allowed": ok,
	}).Debug("check")
	return ok, nil
}

// RolesFor returns the names of the roles assigned to an active user.
func (e *Enforcer) RolesFor(userID string) ([]string, error) {
	roles, err := e.enforcer.GetRolesForUser(userPrefix + userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, strings.TrimPrefix(r, rolePrefix))
	}
	return names, nil
}
