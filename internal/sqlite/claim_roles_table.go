package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

var _ types.Table = (*claimRolesTable)(nil)

// claimRolesTable implements types.Table for *types.ClaimRoleModel. Rows are
// hydrated with the number of entitlements the role owns.
type claimRolesTable struct {
	backend *Backend
}

const selectClaimRoles = `SELECT r.role_id, r.name, r.claim_type, r.claim_value, r.entity_name, r.action, r.description,
    r.priority, r.created_at, r.updated_at,
    (SELECT COUNT(*) FROM role_entitlements e WHERE e.role_id = r.role_id)
FROM claim_roles r`

func scanClaimRole(s scanner) (*types.ClaimRoleModel, error) {
	var (
		r                types.ClaimRoleModel
		action           string
		created, updated string
	)
	if err := s.Scan(&r.RoleID, &r.Name, &r.ClaimType, &r.ClaimValue, &r.EntityName, &action,
		&r.Description, &r.Priority, &created, &updated, &r.EntitlementCount); err != nil {
		return nil, err
	}
	r.Action = []types.LayoutType{}
	if err := json.Unmarshal([]byte(action), &r.Action); err != nil {
		return nil, fmt.Errorf("decoding action of claim role %s: %w", r.RoleID, err)
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

// Get retrieves a role by ID.
func (t *claimRolesTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.checkAttached(); err != nil {
		return nil, err
	}

	role, err := scanClaimRole(t.backend.db.QueryRow(selectClaimRoles+" WHERE r.role_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: claim role %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim role %s: %w", id, err)
	}
	return role, nil
}

// Set creates or updates a role. An empty id creates a role with a new
// UUID v7. Names are unique across roles.
func (t *claimRolesTable) Set(id string, data any) (string, error) {
	role, ok := data.(*types.ClaimRoleModel)
	if !ok || role == nil {
		return "", types.ErrInvalidData
	}
	if err := role.Validate(); err != nil {
		return "", err
	}

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.checkAttached(); err != nil {
		return "", err
	}
	db := t.backend.db

	if id == "" {
		newID, err := newUUID()
		if err != nil {
			return "", err
		}
		id = newID
	}

	taken, err := nameTaken(db, types.TableClaimRoles, "name", "role_id", role.Name, id)
	if err != nil {
		return "", err
	}
	if taken {
		return "", fmt.Errorf("%w: claim role %q", types.ErrDuplicateName, role.Name)
	}

	now := time.Now().UTC()
	created, err := createdAt(db, types.TableClaimRoles, "role_id", id, now)
	if err != nil {
		return "", err
	}

	action, err := json.Marshal(role.Action)
	if err != nil {
		return "", fmt.Errorf("encoding action: %w", err)
	}

	_, err = db.Exec(`INSERT INTO claim_roles
    (role_id, name, claim_type, claim_value, entity_name, action, description, priority, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(role_id) DO UPDATE SET
    name = excluded.name, claim_type = excluded.claim_type,
    claim_value = excluded.claim_value, entity_name = excluded.entity_name,
    action = excluded.action, description = excluded.description,
    priority = excluded.priority, updated_at = excluded.updated_at`,
		id, role.Name, role.ClaimType, role.ClaimValue, role.EntityName, string(action),
		role.Description, role.Priority, formatTime(created), formatTime(now))
	if err != nil {
		return "", fmt.Errorf("persisting claim role: %w", err)
	}

	role.RoleID = id
	role.CreatedAt = created
	role.UpdatedAt = now

	if err := t.backend.persistLocked(types.TableClaimRoles); err != nil {
		return "", fmt.Errorf("persisting claim_roles.jsonl: %w", err)
	}
	t.backend.log.WithFields(logrus.Fields{"table": types.TableClaimRoles, "id": id}).Debug("set")
	return id, nil
}

// Delete removes a role, deletes its entitlements and unassigns it from
// every user that held it.
func (t *claimRolesTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.checkAttached(); err != nil {
		return err
	}

	tx, err := t.backend.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM claim_roles WHERE role_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting claim role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: claim role %s", types.ErrNotFound, id)
	}
	if _, err := tx.Exec("DELETE FROM role_entitlements WHERE role_id = ?", id); err != nil {
		return fmt.Errorf("cascading to role_entitlements: %w", err)
	}
	if _, err := tx.Exec("UPDATE users SET role_id = '' WHERE role_id = ?", id); err != nil {
		return fmt.Errorf("cascading to users: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	if err := t.backend.persistLocked(types.TableClaimRoles, types.TableRoleEntitlements, types.TableUsers); err != nil {
		return fmt.Errorf("persisting after delete: %w", err)
	}
	t.backend.log.WithFields(logrus.Fields{"table": types.TableClaimRoles, "id": id}).Debug("delete")
	return nil
}

// Fetch returns every role in insertion order. Roles take no filter keys.
func (t *claimRolesTable) Fetch(_ map[string]any) ([]any, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.checkAttached(); err != nil {
		return nil, err
	}

	rows, err := t.backend.db.Query(selectClaimRoles + " ORDER BY r.rowid")
	if err != nil {
		return nil, fmt.Errorf("querying claim roles: %w", err)
	}
	defer rows.Close()

	result := []any{}
	for rows.Next() {
		role, err := scanClaimRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claim role: %w", err)
		}
		result = append(result, role)
	}
	return result, rows.Err()
}
