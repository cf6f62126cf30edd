// Package sqlite implements the SQLite storage backend for rolebook.
// SQLite is the query engine; one JSONL file per table in DataDir is the
// source of truth and is reloaded on every Attach.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// dbFileName is the SQLite file created inside DataDir. It is rebuilt from
// the JSONL files on every Attach.
const dbFileName = "rolebook.db"

// Backend implements types.Store using SQLite as the query engine and JSONL
// files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]types.Table

	// dirty holds tables whose JSONL file is stale under the on_close
	// sync strategy.
	dirty map[string]bool

	log *logrus.Entry
}

var _ types.Store = (*Backend)(nil)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]types.Table),
		dirty:  make(map[string]bool),
		log:    log.Get().WithField("prefix", "sqlite"),
	}
}

// GetTable returns the Table registered under name.
// Returns ErrTableNotFound if the table name is not recognized.
// Returns ErrStoreDetached if the backend is not attached.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	table, ok := b.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrTableNotFound, name)
	}
	return table, nil
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, rebuilds the SQLite schema, creates
// missing JSONL files and loads them.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.DataDir == "" {
		config.DataDir = "."
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The database is a disposable index over the JSONL files.
	dbPath := filepath.Join(config.DataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return err
	}
	if err := initJSONLFiles(config.DataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadAllJSONL(db, config.DataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.dirty = make(map[string]bool)
	b.attached = true

	if config.SeedDefaults {
		if err := b.seedBuiltInRoles(); err != nil {
			b.db.Close()
			b.db = nil
			b.attached = false
			return fmt.Errorf("seeding built-in roles: %w", err)
		}
	}

	b.tables[types.TableClaimRoles] = &claimRolesTable{backend: b}
	b.tables[types.TableRoleEntitlements] = &roleEntitlementsTable{backend: b}
	b.tables[types.TableUsers] = &usersTable{backend: b}

	b.log.WithFields(logrus.Fields{
		"data_dir": config.DataDir,
		"sync":     config.EffectiveSyncStrategy(),
	}).Debug("store attached")
	return nil
}

// Detach releases all resources held by the backend. Stale JSONL files are
// rewritten first under the on_close sync strategy. After Detach, all
// operations return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.flushDirtyLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = make(map[string]types.Table)
	b.log.Debug("store detached")
	return nil
}

// persistLocked rewrites the JSONL files of the named tables, or marks them
// dirty under the on_close strategy. The caller must hold b.mu for writing.
func (b *Backend) persistLocked(tables ...string) error {
	if b.config.EffectiveSyncStrategy() == types.SyncOnClose {
		for _, t := range tables {
			b.dirty[t] = true
		}
		return nil
	}
	for _, t := range tables {
		if err := persistTableJSONL(b.db, b.config.DataDir, t); err != nil {
			return err
		}
	}
	return nil
}

// flushDirtyLocked rewrites every dirty table. The caller must hold b.mu
// for writing.
func (b *Backend) flushDirtyLocked() error {
	for _, tf := range jsonlTables {
		if !b.dirty[tf.table] {
			continue
		}
		if err := persistTableJSONL(b.db, b.config.DataDir, tf.table); err != nil {
			return fmt.Errorf("flush %s: %w", tf.table, err)
		}
		delete(b.dirty, tf.table)
	}
	return nil
}

// WithStore attaches a new backend with config, runs fn, and detaches even
// when fn fails or panics. A Detach error is reported only if fn succeeded.
func WithStore(config types.Config, fn func(types.Store) error) (err error) {
	b := NewBackend()
	if err := b.Attach(config); err != nil {
		return fmt.Errorf("attach store: %w", err)
	}
	defer func() {
		if derr := b.Detach(); derr != nil && err == nil {
			err = fmt.Errorf("detach store: %w", derr)
		}
	}()
	return fn(b)
}
