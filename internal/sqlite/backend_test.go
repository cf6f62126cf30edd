package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{Backend: types.BackendSQLite, DataDir: tmpDir}

	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	if _, err := os.Stat(filepath.Join(tmpDir, dbFileName)); os.IsNotExist(err) {
		t.Errorf("%s not created", dbFileName)
	}
	for _, spec := range jsonlTables {
		if _, err := os.Stat(filepath.Join(tmpDir, spec.file)); os.IsNotExist(err) {
			t.Errorf("expected %s to be created", spec.file)
		}
	}

	if err := b.Attach(config); !errors.Is(err, types.ErrAlreadyAttached) {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestBackend_AttachCreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	if !errors.Is(err, types.ErrBackendUnknown) {
		t.Errorf("expected ErrBackendUnknown, got %v", err)
	}
	if _, err := b.GetTable(types.TableUsers); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("expected ErrStoreDetached after failed attach, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	users, err := b.GetTable(types.TableUsers)
	if err != nil {
		t.Fatalf("GetTable failed: %v", err)
	}

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should be a no-op, got %v", err)
	}

	if _, err := b.GetTable(types.TableUsers); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
	if _, err := users.Fetch(nil); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("held table should report ErrStoreDetached, got %v", err)
	}
	if _, err := users.Set("", &types.User{UserName: "late"}); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("held table should reject writes, got %v", err)
	}
}

func TestBackend_GetTable(t *testing.T) {
	b, _ := setupBackend(t)

	for _, name := range types.StandardTableNames {
		if _, err := b.GetTable(name); err != nil {
			t.Errorf("GetTable(%q) failed: %v", name, err)
		}
	}
	if _, err := b.GetTable("widgets"); !errors.Is(err, types.ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestBackend_ReattachReloadsFromJSONL(t *testing.T) {
	dataDir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}

	b := NewBackend()
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	roleID := createRole(t, b, "auditors")
	users := table(t, b, types.TableUsers)
	userID, err := users.Set("", &types.User{UserName: "ada", RoleID: roleID, IsActive: true})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	b2 := NewBackend()
	if err := b2.Attach(config); err != nil {
		t.Fatalf("re-Attach failed: %v", err)
	}
	defer b2.Detach()

	got, err := table(t, b2, types.TableUsers).Get(userID)
	if err != nil {
		t.Fatalf("Get after reload failed: %v", err)
	}
	u := got.(*types.User)
	if u.UserName != "ada" || !u.IsActive || u.RoleName != "auditors" {
		t.Errorf("reloaded user = %+v", u)
	}
}

func TestBackend_SyncOnClose(t *testing.T) {
	b, dataDir := setupBackend(t, func(c *types.Config) { c.SyncStrategy = types.SyncOnClose })

	createRole(t, b, "operators")

	path := filepath.Join(dataDir, "claim_roles.jsonl")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("on_close should defer the write, file has %d bytes", info.Size())
	}

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	records, err := readJSONL(path)
	if err != nil {
		t.Fatalf("readJSONL: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after Detach, got %d", len(records))
	}
}

func TestWithStore(t *testing.T) {
	config := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
	boom := errors.New("boom")

	var held types.Store
	err := WithStore(config, func(s types.Store) error {
		held = s
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}
	if _, err := held.GetTable(types.TableUsers); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("store should be detached after WithStore, got %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = WithStore(config, func(s types.Store) error {
			held = s
			panic("fn panicked")
		})
	}()
	if _, err := held.GetTable(types.TableUsers); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("store should be detached after a panic, got %v", err)
	}
}
