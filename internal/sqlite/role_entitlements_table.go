package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

var _ types.Table = (*roleEntitlementsTable)(nil)

// roleEntitlementsTable implements types.Table for *types.RoleEntitlement.
// Rows are hydrated with the owning role's name.
type roleEntitlementsTable struct {
	backend *Backend
}

const selectRoleEntitlements = `SELECT e.entitlement_id, e.role_id, e.entitlement, e.scope, e.enabled,
    e.created_at, e.updated_at, COALESCE(r.name, '')
FROM role_entitlements e
LEFT JOIN claim_roles r ON r.role_id = e.role_id`

func scanRoleEntitlement(s scanner) (*types.RoleEntitlement, error) {
	var (
		e                types.RoleEntitlement
		enabled          int64
		created, updated string
	)
	if err := s.Scan(&e.EntitlementID, &e.RoleID, &e.Entitlement, &e.Scope, &enabled,
		&created, &updated, &e.RoleName); err != nil {
		return nil, err
	}
	e.Enabled = enabled != 0
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

// Get retrieves an entitlement by ID.
func (t *roleEntitlementsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.checkAttached(); err != nil {
		return nil, err
	}

	e, err := scanRoleEntitlement(t.backend.db.QueryRow(selectRoleEntitlements+" WHERE e.entitlement_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: role entitlement %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting role entitlement %s: %w", id, err)
	}
	return e, nil
}

// Set creates or updates an entitlement. The owning role must exist.
func (t *roleEntitlementsTable) Set(id string, data any) (string, error) {
	e, ok := data.(*types.RoleEntitlement)
	if !ok || e == nil {
		return "", types.ErrInvalidData
	}
	if err := e.Validate(); err != nil {
		return "", err
	}

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.checkAttached(); err != nil {
		return "", err
	}
	db := t.backend.db

	found, err := exists(db, types.TableClaimRoles, "role_id", e.RoleID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: claim role %s", types.ErrInvalidReference, e.RoleID)
	}

	if id == "" {
		if id, err = newUUID(); err != nil {
			return "", err
		}
	}

	now := time.Now().UTC()
	created, err := createdAt(db, types.TableRoleEntitlements, "entitlement_id", id, now)
	if err != nil {
		return "", err
	}

	_, err = db.Exec(`INSERT INTO role_entitlements
    (entitlement_id, role_id, entitlement, scope, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(entitlement_id) DO UPDATE SET
    role_id = excluded.role_id, entitlement = excluded.entitlement,
    scope = excluded.scope, enabled = excluded.enabled,
    updated_at = excluded.updated_at`,
		id, e.RoleID, strings.TrimSpace(e.Entitlement), e.Scope, boolToInt(e.Enabled),
		formatTime(created), formatTime(now))
	if err != nil {
		return "", fmt.Errorf("persisting role entitlement: %w", err)
	}

	e.EntitlementID = id
	e.Entitlement = strings.TrimSpace(e.Entitlement)
	e.CreatedAt = created
	e.UpdatedAt = now

	if err := t.backend.persistLocked(types.TableRoleEntitlements); err != nil {
		return "", fmt.Errorf("persisting role_entitlements.jsonl: %w", err)
	}
	t.backend.log.WithFields(logrus.Fields{"table": types.TableRoleEntitlements, "id": id}).Debug("set")
	return id, nil
}

// Delete removes an entitlement.
func (t *roleEntitlementsTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.checkAttached(); err != nil {
		return err
	}

	res, err := t.backend.db.Exec("DELETE FROM role_entitlements WHERE entitlement_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting role entitlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: role entitlement %s", types.ErrNotFound, id)
	}
	if err := t.backend.persistLocked(types.TableRoleEntitlements); err != nil {
		return fmt.Errorf("persisting role_entitlements.jsonl: %w", err)
	}
	t.backend.log.WithFields(logrus.Fields{"table": types.TableRoleEntitlements, "id": id}).Debug("delete")
	return nil
}

// Fetch returns entitlements in insertion order. Supported filter keys are
// role_id (string) and enabled (boolean); other keys are ignored.
func (t *roleEntitlementsTable) Fetch(filter map[string]any) ([]any, error) {
	var (
		where []string
		args  []any
	)
	if roleID, ok, err := filterString(filter, "role_id"); err != nil {
		return nil, err
	} else if ok {
		where = append(where, "e.role_id = ?")
		args = append(args, roleID)
	}
	if enabled, ok, err := filterBool(filter, "enabled"); err != nil {
		return nil, err
	} else if ok {
		where = append(where, "e.enabled = ?")
		args = append(args, boolToInt(enabled))
	}

	query := selectRoleEntitlements
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.rowid"

	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.checkAttached(); err != nil {
		return nil, err
	}

	rows, err := t.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying role entitlements: %w", err)
	}
	defer rows.Close()

	result := []any{}
	for rows.Next() {
		e, err := scanRoleEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role entitlement: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
