package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

func TestLoadJSONLUnknownFieldsAndCoercion(t *testing.T) {
	dataDir := t.TempDir()
	files := map[string]string{
		"claim_roles.jsonl": `{"role_id":"r1","name":"ops","claim_type":"groups","claim_value":"ops","priority":"7","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z","future_field":{"nested":true}}
{"role_id":"r2","name":"editors","claim_type":"groups","claim_value":"ed","entity_name":"Invoice","action":[3,"1",2,"x"],"created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"role_id":"r3","name":"odd","claim_type":"groups","claim_value":"odd","action":"edit","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"name":"no id, skipped"}
`,
		"role_entitlements.jsonl": `{"entitlement_id":"e1","role_id":"r1","entitlement":"deploy:*","scope":"tenant","enabled":1,"created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
`,
		"users.jsonl": `{"user_id":"u1","user_name":"ada","role_id":"r1","is_active":true,"login_count":12,"created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z","tags":["a","b"]}
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(content), 0o644))
	}

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}))
	t.Cleanup(func() { _ = b.Detach() })

	roles, err := table(t, b, types.TableClaimRoles).Fetch(nil)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	role := roles[0].(*types.ClaimRoleModel)
	assert.Equal(t, int64(7), role.Priority)
	assert.Equal(t, int64(1), role.EntitlementCount)
	assert.Equal(t, 2025, role.CreatedAt.Year())
	assert.Empty(t, role.EntityName)
	assert.Equal(t, []types.LayoutType{}, role.Action)

	editors := roles[1].(*types.ClaimRoleModel)
	assert.Equal(t, "Invoice", editors.EntityName)
	assert.Equal(t, []types.LayoutType{types.LayoutEdit, types.LayoutList, types.LayoutAdd}, editors.Action)

	odd := roles[2].(*types.ClaimRoleModel)
	assert.Equal(t, []types.LayoutType{}, odd.Action, "non-array action loads as empty")

	ent, err := table(t, b, types.TableRoleEntitlements).Get("e1")
	require.NoError(t, err)
	assert.True(t, ent.(*types.RoleEntitlement).Enabled)
	assert.Equal(t, types.ScopeTenant, ent.(*types.RoleEntitlement).Scope)

	user, err := table(t, b, types.TableUsers).Get("u1")
	require.NoError(t, err)
	u := user.(*types.User)
	assert.True(t, u.IsActive)
	assert.Equal(t, int64(12), u.LoginCount)
	assert.Equal(t, "ops", u.RoleName)
}

func TestPersistTableJSONLRoundTrip(t *testing.T) {
	b, dataDir := setupBackend(t)
	roleID := createRole(t, b, "qa")
	_, err := table(t, b, types.TableUsers).Set("", &types.User{UserName: "tester", RoleID: roleID, IsActive: true})
	require.NoError(t, err)

	records, err := readJSONL(filepath.Join(dataDir, "users.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0]), `"is_active":true`)
	assert.Contains(t, string(records[0]), `"role_id":"`+roleID+`"`)
	assert.NotContains(t, string(records[0]), "role_name")
}

func TestPersistClaimRoleActionsRoundTrip(t *testing.T) {
	b, dataDir := setupBackend(t)
	roles := table(t, b, types.TableClaimRoles)
	id, err := roles.Set("", &types.ClaimRoleModel{
		Name: "invoicing", ClaimType: "groups", ClaimValue: "billing",
		EntityName: "Invoice", Action: []types.LayoutType{types.LayoutEdit, types.LayoutList},
	})
	require.NoError(t, err)

	records, err := readJSONL(filepath.Join(dataDir, "claim_roles.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, string(records[0]), `"action":[1,3]`)
	assert.Contains(t, string(records[0]), `"entity_name":"Invoice"`)
	assert.NotContains(t, string(records[0]), "entitlement_count")

	require.NoError(t, b.Detach())
	b2 := NewBackend()
	require.NoError(t, b2.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}))
	t.Cleanup(func() { _ = b2.Detach() })
	got, err := table(t, b2, types.TableClaimRoles).Get(id)
	require.NoError(t, err)
	role := got.(*types.ClaimRoleModel)
	assert.Equal(t, "Invoice", role.EntityName)
	assert.Equal(t, []types.LayoutType{types.LayoutList, types.LayoutEdit}, role.Action)
}

func TestPersistTableJSONLUnknownTable(t *testing.T) {
	b, dataDir := setupBackend(t)
	err := persistTableJSONL(b.db, dataDir, "widgets")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}
