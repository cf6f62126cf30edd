package authz

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/internal/sqlite"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

func init() {
	log.SetOutput(io.Discard)
}

type grants struct {
	store types.Store
	users map[string]string
}

func setupGrants(t *testing.T) grants {
	t.Helper()
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = store.Detach() })

	roles, err := store.GetTable(types.TableClaimRoles)
	require.NoError(t, err)
	ents, err := store.GetTable(types.TableRoleEntitlements)
	require.NoError(t, err)
	users, err := store.GetTable(types.TableUsers)
	require.NoError(t, err)

	analyst, err := roles.Set("", &types.ClaimRoleModel{Name: "analyst", ClaimType: "groups", ClaimValue: "analysts"})
	require.NoError(t, err)
	admin, err := roles.Set("", &types.ClaimRoleModel{Name: "admin", ClaimType: "role", ClaimValue: "admin"})
	require.NoError(t, err)

	for _, e := range []*types.RoleEntitlement{
		{RoleID: analyst, Entitlement: "reports:*", Scope: types.ScopeTenant, Enabled: true},
		{RoleID: analyst, Entitlement: "profile:edit", Scope: types.ScopeSelf, Enabled: true},
		{RoleID: analyst, Entitlement: "billing:read", Scope: types.ScopeGlobal, Enabled: false},
		{RoleID: admin, Entitlement: "*", Scope: types.ScopeGlobal, Enabled: true},
	} {
		_, err := ents.Set("", e)
		require.NoError(t, err)
	}

	ids := make(map[string]string)
	for _, u := range []*types.User{
		{UserName: "ana", RoleID: analyst, IsActive: true},
		{UserName: "root", RoleID: admin, IsActive: true},
		{UserName: "retired", RoleID: admin, IsActive: false},
		{UserName: "guest", IsActive: true},
	} {
		id, err := users.Set("", u)
		require.NoError(t, err)
		ids[u.UserName] = id
	}
	return grants{store: store, users: ids}
}

func TestAllowed(t *testing.T) {
	g := setupGrants(t)
	e, err := Load(g.store)
	require.NoError(t, err)

	tests := []struct {
		name        string
		user        string
		entitlement string
		scope       string
		want        bool
	}{
		{"wildcard entitlement in its scope", "ana", "reports:read", types.ScopeTenant, true},
		{"wildcard entitlement outside its scope", "ana", "reports:read", types.ScopeSelf, false},
		{"exact entitlement", "ana", "profile:edit", types.ScopeSelf, true},
		{"disabled entitlement grants nothing", "ana", "billing:read", types.ScopeGlobal, false},
		{"unrelated entitlement", "ana", "users:delete", types.ScopeTenant, false},
		{"global grant covers every scope", "root", "users:delete", types.ScopeSelf, true},
		{"empty scope means global", "root", "users:delete", "", true},
		{"inactive user", "retired", "users:delete", types.ScopeGlobal, false},
		{"user without role", "guest", "reports:read", types.ScopeTenant, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Allowed(g.users[tt.user], tt.entitlement, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowedInvalidArguments(t *testing.T) {
	g := setupGrants(t)
	e, err := Load(g.store)
	require.NoError(t, err)

	_, err = e.Allowed("", "reports:read", "")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = e.Allowed(g.users["ana"], " ", "")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = e.Allowed(g.users["ana"], "reports:read", "planet")
	assert.ErrorIs(t, err, types.ErrInvalidScope)

	ok, err := e.Allowed("no-such-user", "reports:read", types.ScopeTenant)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRolesFor(t *testing.T) {
	g := setupGrants(t)
	e, err := Load(g.store)
	require.NoError(t, err)

	roles, err := e.RolesFor(g.users["ana"])
	require.NoError(t, err)
	assert.Equal(t, []string{"analyst"}, roles)

	roles, err = e.RolesFor(g.users["retired"])
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestLoadDetachedStore(t *testing.T) {
	_, err := Load(sqlite.NewBackend())
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}
