package service

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/internal/sqlite"
	"github.com/mesh-intelligence/rolebook/pkg/patch"
	"github.com/mesh-intelligence/rolebook/pkg/query"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

func init() {
	log.SetOutput(io.Discard)
}

type fixture struct {
	roles *Service[types.ClaimRoleModel]
	ents  *Service[types.RoleEntitlement]
	users *Service[types.User]
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = store.Detach() })

	roles, err := NewClaimRoleModels(store)
	require.NoError(t, err)
	ents, err := NewRoleEntitlements(store)
	require.NoError(t, err)
	users, err := NewUsers(store)
	require.NoError(t, err)
	return fixture{roles: roles, ents: ents, users: users}
}

func mustReplace(t *testing.T, field string, value any) patch.Operation {
	t.Helper()
	op, err := patch.Replace(field, value)
	require.NoError(t, err)
	return op
}

func TestNewServiceDetachedStore(t *testing.T) {
	_, err := NewUsers(sqlite.NewBackend())
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestCreateAndGetByID(t *testing.T) {
	f := setup(t)

	id, err := f.roles.Create(&types.ClaimRoleModel{RoleID: "ignored", Name: "ops", ClaimType: "groups", ClaimValue: "ops"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", id)

	got, err := f.roles.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, "ops", got.Name)

	_, err = f.roles.GetByID("")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = f.roles.GetByID("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.roles.Create(&types.ClaimRoleModel{Name: "incomplete"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = f.roles.Create(nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestCreateWritesStoredValuesBack(t *testing.T) {
	f := setup(t)
	u := &types.User{UserID: "ignored", UserName: " bob "}
	id, err := f.users.Create(u)
	require.NoError(t, err)
	assert.Equal(t, id, u.UserID)
	assert.Equal(t, "bob", u.UserName)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)
}

func TestPatchFields(t *testing.T) {
	fields, err := PatchFields(types.TableUsers)
	require.NoError(t, err)
	assert.Equal(t, []string{"display_name", "email", "is_active", "login_count", "role_id", "user_name"}, fields)

	_, err = PatchFields("crates")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	id, err := f.users.Create(&types.User{UserName: "ada", Email: "ada@example.com"})
	require.NoError(t, err)

	require.NoError(t, f.users.Update(id, &types.User{UserName: "ada", Email: "countess@example.com", IsActive: true}))
	got, err := f.users.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, "countess@example.com", got.Email)
	assert.True(t, got.IsActive)

	err = f.users.Update("missing", &types.User{UserName: "ghost"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	all, err := f.users.List(ListRequest{Request: query.Request{Page: 1, PageSize: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Total, "update of a missing id must not insert")

	assert.ErrorIs(t, f.users.Update("", &types.User{UserName: "x"}), types.ErrInvalidArgument)
	assert.ErrorIs(t, f.users.Update(id, &types.User{}), types.ErrInvalidArgument)
}

func TestPatch(t *testing.T) {
	f := setup(t)
	roleID, err := f.roles.Create(&types.ClaimRoleModel{Name: "support", ClaimType: "groups", ClaimValue: "support"})
	require.NoError(t, err)
	id, err := f.users.Create(&types.User{UserName: "grace", DisplayName: "Grace", RoleID: roleID})
	require.NoError(t, err)

	t.Run("replace and remove", func(t *testing.T) {
		doc := patch.Document{
			mustReplace(t, "display_name", "Grace Hopper"),
			mustReplace(t, "login_count", 4),
			{Op: patch.OpRemove, Path: "/role_id"},
		}
		require.NoError(t, f.users.Patch(id, doc))

		got, err := f.users.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", got.DisplayName)
		assert.Equal(t, int64(4), got.LoginCount)
		assert.Empty(t, got.RoleID)
		assert.Equal(t, "grace", got.UserName)
	})

	t.Run("missing document", func(t *testing.T) {
		assert.ErrorIs(t, f.users.Patch(id, nil), types.ErrInvalidArgument)
		assert.ErrorIs(t, f.users.Patch(id, patch.Document{}), types.ErrInvalidArgument)
	})

	t.Run("unknown field leaves entity untouched", func(t *testing.T) {
		doc := patch.Document{
			mustReplace(t, "display_name", "Changed"),
			mustReplace(t, "user_id", "new-id"),
		}
		assert.ErrorIs(t, f.users.Patch(id, doc), types.ErrInvalidArgument)
		got, err := f.users.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", got.DisplayName)
	})

	t.Run("document checked before lookup", func(t *testing.T) {
		err := f.users.Patch("missing", nil)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		err = f.users.Patch("missing", patch.Document{mustReplace(t, "email", "x@y")})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("mistyped value checked before lookup", func(t *testing.T) {
		err := f.users.Patch("missing", patch.Document{mustReplace(t, "is_active", "yes")})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		assert.NotErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("store validation still applies", func(t *testing.T) {
		err := f.users.Patch(id, patch.Document{mustReplace(t, "role_id", "no-such-role")})
		assert.ErrorIs(t, err, types.ErrInvalidReference)
	})

	t.Run("entitlement scope removal resets to global", func(t *testing.T) {
		entID, err := f.ents.Create(&types.RoleEntitlement{RoleID: roleID, Entitlement: "tickets:read", Scope: types.ScopeSelf})
		require.NoError(t, err)
		require.NoError(t, f.ents.Patch(entID, patch.Document{{Op: patch.OpRemove, Path: "/scope"}}))
		got, err := f.ents.GetByID(entID)
		require.NoError(t, err)
		assert.Equal(t, types.ScopeGlobal, got.Scope)
	})
}

func TestDelete(t *testing.T) {
	f := setup(t)
	id, err := f.users.Create(&types.User{UserName: "temp"})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(id))
	assert.ErrorIs(t, f.users.Delete(id), types.ErrNotFound)
	assert.ErrorIs(t, f.users.Delete(""), types.ErrInvalidArgument)
}

func TestList(t *testing.T) {
	f := setup(t)
	adminID, err := f.roles.Create(&types.ClaimRoleModel{Name: "admins", ClaimType: "groups", ClaimValue: "admins", Priority: 10})
	require.NoError(t, err)
	staffID, err := f.roles.Create(&types.ClaimRoleModel{Name: "staff", ClaimType: "groups", ClaimValue: "staff", Priority: 1})
	require.NoError(t, err)

	seed := []types.User{
		{UserName: "alice", Email: "alice@corp.example", RoleID: adminID, IsActive: true, LoginCount: 10},
		{UserName: "bob", Email: "bob@corp.example", RoleID: staffID, IsActive: true, LoginCount: 3},
		{UserName: "carol", Email: "carol@home.example", RoleID: staffID, LoginCount: 7},
		{UserName: "dave", DisplayName: "Dave from Corp", IsActive: true},
	}
	for i := range seed {
		_, err := f.users.Create(&seed[i])
		require.NoError(t, err)
	}

	names := func(res *query.Result[types.User]) []string {
		out := make([]string, 0, len(res.Items))
		for _, u := range res.Items {
			out = append(out, u.UserName)
		}
		return out
	}

	t.Run("filter sort page", func(t *testing.T) {
		res, err := f.users.List(ListRequest{Request: query.Request{
			Filters:   []query.Criterion{{PropertyName: "is_active", Operator: query.Equal, Value: "true"}},
			SortField: "login_count",
			SortOrder: "desc",
			Page:      1,
			PageSize:  2,
		}})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Equal(t, []string{"alice", "bob"}, names(res))
	})

	t.Run("search is case-insensitive across searchable fields", func(t *testing.T) {
		res, err := f.users.List(ListRequest{Request: query.Request{Search: "CORP", Page: 1, PageSize: 10}})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "dave"}, names(res))
	})

	t.Run("hydrated role name is queryable", func(t *testing.T) {
		res, err := f.users.List(ListRequest{Request: query.Request{
			Filters: []query.Criterion{{PropertyName: "role_name", Operator: query.Equal, Value: "staff"}},
			Page:    1, PageSize: 10,
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "carol"}, names(res))
	})

	t.Run("store prefilter", func(t *testing.T) {
		res, err := f.users.List(ListRequest{
			Request: query.Request{Page: 1, PageSize: 10},
			Where:   map[string]any{"role_id": adminID},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, names(res))
	})

	t.Run("invalid arguments", func(t *testing.T) {
		bad := []query.Request{
			{Page: 0, PageSize: 10},
			{Page: 1, PageSize: 10, SortField: "password"},
			{Page: 1, PageSize: 10, SortOrder: "sideways"},
			{Page: 1, PageSize: 10, Filters: []query.Criterion{{PropertyName: "email", Operator: "Like", Value: "x"}}},
		}
		for _, req := range bad {
			_, err := f.users.List(ListRequest{Request: req})
			assert.ErrorIs(t, err, types.ErrInvalidArgument, "%+v", req)
		}
	})

	t.Run("roles sorted by hydrated entitlement count", func(t *testing.T) {
		_, err := f.ents.Create(&types.RoleEntitlement{RoleID: staffID, Entitlement: "wiki:read", Enabled: true})
		require.NoError(t, err)
		res, err := f.roles.List(ListRequest{Request: query.Request{SortField: "entitlement_count", SortOrder: "desc", Page: 1, PageSize: 10}})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "staff", res.Items[0].Name)
	})

	t.Run("entitlements by scope enum", func(t *testing.T) {
		res, err := f.ents.List(ListRequest{Request: query.Request{
			Filters: []query.Criterion{{PropertyName: "scope", Operator: query.Equal, Value: "GLOBAL"}},
			Search:  "STAFF",
			Page:    1, PageSize: 10,
		}})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "wiki:read", res.Items[0].Entitlement)
	})
}

func TestClaimRoleActions(t *testing.T) {
	f := setup(t)
	viewID, err := f.roles.Create(&types.ClaimRoleModel{Name: "viewers", ClaimType: "groups", ClaimValue: "view",
		EntityName: "Invoice", Action: []types.LayoutType{types.LayoutList}})
	require.NoError(t, err)
	_, err = f.roles.Create(&types.ClaimRoleModel{Name: "editors", ClaimType: "groups", ClaimValue: "edit",
		EntityName: "Invoice", Action: []types.LayoutType{types.LayoutEdit, types.LayoutList, types.LayoutAdd}})
	require.NoError(t, err)
	_, err = f.roles.Create(&types.ClaimRoleModel{Name: "clerks", ClaimType: "groups", ClaimValue: "clerk",
		EntityName: "Customer", Action: []types.LayoutType{types.LayoutAdd}})
	require.NoError(t, err)

	list := func(filters ...query.Criterion) []string {
		t.Helper()
		res, err := f.roles.List(ListRequest{Request: query.Request{Page: 1, PageSize: 10, Filters: filters, SortField: "name"}})
		require.NoError(t, err)
		var out []string
		for _, r := range res.Items {
			out = append(out, r.Name)
		}
		return out
	}

	assert.Equal(t, []string{"editors", "viewers"}, list(query.Criterion{PropertyName: "action", Operator: query.Contains, Value: "list"}))
	assert.Equal(t, []string{"clerks", "editors"}, list(query.Criterion{PropertyName: "action", Operator: query.Contains, Value: "2"}))
	assert.Equal(t, []string{"editors"}, list(query.Criterion{PropertyName: "action", Operator: query.Equal, Value: "edit,add,list"}))
	assert.Equal(t, []string{"editors"}, list(query.Criterion{PropertyName: "action_count", Operator: query.GreaterThan, Value: "1"}))
	assert.Equal(t, []string{"clerks"}, list(query.Criterion{PropertyName: "entity_name", Operator: query.Equal, Value: "Customer"}))

	_, err = f.roles.List(ListRequest{Request: query.Request{Page: 1, PageSize: 10,
		Filters: []query.Criterion{{PropertyName: "action", Operator: query.Contains, Value: "delete"}}}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	t.Run("patch action", func(t *testing.T) {
		require.NoError(t, f.roles.Patch(viewID, patch.Document{
			mustReplace(t, "action", []int{3, 1, 3}),
			mustReplace(t, "entity_name", "Order"),
		}))
		got, err := f.roles.GetByID(viewID)
		require.NoError(t, err)
		assert.Equal(t, []types.LayoutType{types.LayoutList, types.LayoutEdit}, got.Action)
		assert.Equal(t, "Order", got.EntityName)

		require.NoError(t, f.roles.Patch(viewID, patch.Document{{Op: patch.OpRemove, Path: "/action"}}))
		got, err = f.roles.GetByID(viewID)
		require.NoError(t, err)
		assert.Empty(t, got.Action)
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		err := f.roles.Patch(viewID, patch.Document{mustReplace(t, "action", []int{4})})
		assert.ErrorIs(t, err, types.ErrInvalidData)
		err = f.roles.Patch(viewID, patch.Document{mustReplace(t, "action", "edit")})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})
}
