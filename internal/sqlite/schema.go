package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema DDL. Timestamps are RFC 3339 text with nanoseconds; booleans are
// stored as 0/1 integers; integer lists are JSON arrays.
const (
	createClaimRoles = `CREATE TABLE claim_roles (
    role_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    claim_type TEXT NOT NULL,
    claim_value TEXT NOT NULL,
    entity_name TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT '[]',
    description TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createRoleEntitlements = `CREATE TABLE role_entitlements (
    entitlement_id TEXT PRIMARY KEY,
    role_id TEXT NOT NULL,
    entitlement TEXT NOT NULL,
    scope TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createUsers = `CREATE TABLE users (
    user_id TEXT PRIMARY KEY,
    user_name TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL DEFAULT '',
    role_id TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 0,
    login_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
)

const (
	indexEntitlementsRole = `CREATE INDEX idx_role_entitlements_role ON role_entitlements(role_id);`
	indexUsersRole        = `CREATE INDEX idx_users_role ON users(role_id);`
)

var (
	schemaDDL = []string{createClaimRoles, createRoleEntitlements, createUsers}
	indexDDL  = []string{indexEntitlementsRole, indexUsersRole}
)

// createSchema applies the table and index DDL to a fresh database.
func createSchema(db *sql.DB) error {
	for _, stmt := range append(schemaDDL, indexDDL...) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
