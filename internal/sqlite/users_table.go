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

var _ types.Table = (*usersTable)(nil)

// usersTable implements types.Table for *types.User. Rows are hydrated with
// the assigned role's name.
type usersTable struct {
	backend *Backend
}

const selectUsers = `SELECT u.user_id, u.user_name, u.email, u.display_name, u.role_id,
    u.is_active, u.login_count, u.created_at, u.updated_at, COALESCE(r.name, '')
FROM users u
LEFT JOIN claim_roles r ON r.role_id = u.role_id`

func scanUser(s scanner) (*types.User, error) {
	var (
		u                types.User
		active           int64
		created, updated string
	)
	if err := s.Scan(&u.UserID, &u.UserName, &u.Email, &u.DisplayName, &u.RoleID,
		&active, &u.LoginCount, &created, &updated, &u.RoleName); err != nil {
		return nil, err
	}
	u.IsActive = active != 0
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return &u, nil
}

// Get retrieves a user by ID.
func (t *usersTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.checkAttached(); err != nil {
		return nil, err
	}

	u, err := scanUser(t.backend.db.QueryRow(selectUsers+" WHERE u.user_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

// Set creates or updates a user. User names are unique, and a non-empty
// role_id must name an existing role.
func (t *usersTable) Set(id string, data any) (string, error) {
	u, ok := data.(*types.User)
	if !ok || u == nil {
		return "", types.ErrInvalidData
	}
	if err := u.Validate(); err != nil {
		return "", err
	}

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.checkAttached(); err != nil {
		return "", err
	}
	db := t.backend.db

	if u.RoleID != "" {
		found, err := exists(db, types.TableClaimRoles, "role_id", u.RoleID)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("%w: claim role %s", types.ErrInvalidReference, u.RoleID)
		}
	}

	var err error
	if id == "" {
		if id, err = newUUID(); err != nil {
			return "", err
		}
	}

	name := strings.TrimSpace(u.UserName)
	taken, err := nameTaken(db, types.TableUsers, "user_name", "user_id", name, id)
	if err != nil {
		return "", err
	}
	if taken {
		return "", fmt.Errorf("%w: user %q", types.ErrDuplicateName, name)
	}

	now := time.Now().UTC()
	created, err := createdAt(db, types.TableUsers, "user_id", id, now)
	if err != nil {
		return "", err
	}

	_, err = db.Exec(`INSERT INTO users
    (user_id, user_name, email, display_name, role_id, is_active, login_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    user_name = excluded.user_name, email = excluded.email,
    display_name = excluded.display_name, role_id = excluded.role_id,
    is_active = excluded.is_active, login_count = excluded.login_count,
    updated_at = excluded.updated_at`,
		id, name, u.Email, u.DisplayName, u.RoleID, boolToInt(u.IsActive), u.LoginCount,
		formatTime(created), formatTime(now))
	if err != nil {
		return "", fmt.Errorf("persisting user: %w", err)
	}

	u.UserID = id
	u.UserName = name
	u.CreatedAt = created
	u.UpdatedAt = now

	if err := t.backend.persistLocked(types.TableUsers); err != nil {
		return "", fmt.Errorf("persisting users.jsonl: %w", err)
	}
	t.backend.log.WithFields(logrus.Fields{"table": types.TableUsers, "id": id}).Debug("set")
	return id, nil
}

// Delete removes a user.
func (t *usersTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.checkAttached(); err != nil {
		return err
	}

	res, err := t.backend.db.Exec("DELETE FROM users WHERE user_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", types.ErrNotFound, id)
	}
	if err := t.backend.persistLocked(types.TableUsers); err != nil {
		return fmt.Errorf("persisting users.jsonl: %w", err)
	}
	t.backend.log.WithFields(logrus.Fields{"table": types.TableUsers, "id": id}).Debug("delete")
	return nil
}

// Fetch returns users in insertion order. The supported filter key is
// role_id (string); other keys are ignored.
func (t *usersTable) Fetch(filter map[string]any) ([]any, error) {
	query := selectUsers
	var args []any
	if roleID, ok, err := filterString(filter, "role_id"); err != nil {
		return nil, err
	} else if ok {
		query += " WHERE u.role_id = ?"
		args = append(args, roleID)
	}
	query += " ORDER BY u.rowid"

	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.checkAttached(); err != nil {
		return nil, err
	}

	rows, err := t.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	result := []any{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
