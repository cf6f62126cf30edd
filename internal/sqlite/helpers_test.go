package sqlite

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

func init() {
	log.SetOutput(io.Discard)
}

// setupBackend attaches a fresh backend in a temp dir and detaches it when
// the test ends.
func setupBackend(t *testing.T, opts ...func(*types.Config)) (*Backend, string) {
	t.Helper()
	dataDir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}
	for _, opt := range opts {
		opt(&cfg)
	}
	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	t.Cleanup(func() { _ = b.Detach() })
	return b, dataDir
}

func table(t *testing.T, b *Backend, name string) types.Table {
	t.Helper()
	tbl, err := b.GetTable(name)
	require.NoError(t, err)
	return tbl
}

func createRole(t *testing.T, b *Backend, name string) string {
	t.Helper()
	id, err := table(t, b, types.TableClaimRoles).Set("", &types.ClaimRoleModel{
		Name: name, ClaimType: "groups", ClaimValue: name + "-group",
	})
	require.NoError(t, err)
	return id
}
