package types

import (
	"strings"
	"time"
)

// User is an account administered by rolebook. A user holds at most one
// ClaimRoleModel.
type User struct {
	UserID      string    `json:"user_id"`   // UUID v7, generated on creation.
	UserName    string    `json:"user_name"` // Unique login name (required).
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	RoleID      string    `json:"role_id"` // Optional; must name an existing role when set.
	IsActive    bool      `json:"is_active"`
	LoginCount  int64     `json:"login_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// RoleName is hydrated from the assigned role and ignored on writes.
	RoleName string `json:"role_name"`
}

// Validate checks the fields a user must carry before it is stored.
func (u *User) Validate() error {
	if strings.TrimSpace(u.UserName) == "" {
		return ErrInvalidName
	}
	if u.LoginCount < 0 {
		return ErrInvalidData
	}
	return nil
}
