package types

import (
	"strings"
	"time"
)

// Entitlement scopes. A global entitlement applies in every scope.
const (
	ScopeGlobal = "global"
	ScopeTenant = "tenant"
	ScopeSelf   = "self"
)

// Scopes lists the recognized scope values in display order.
var Scopes = []string{ScopeGlobal, ScopeTenant, ScopeSelf}

// ValidScope reports whether s is a recognized scope value.
func ValidScope(s string) bool {
	for _, v := range Scopes {
		if v == s {
			return true
		}
	}
	return false
}

// RoleEntitlement grants a named permission (for example "reports:read" or
// "reports:*") to every holder of a ClaimRoleModel.
type RoleEntitlement struct {
	EntitlementID string    `json:"entitlement_id"` // UUID v7, generated on creation.
	RoleID        string    `json:"role_id"`        // Owning ClaimRoleModel (required, must exist).
	Entitlement   string    `json:"entitlement"`    // Permission name (required).
	Scope         string    `json:"scope"`          // One of the Scope constants; empty means global.
	Enabled       bool      `json:"enabled"`        // Disabled entitlements grant nothing.
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// RoleName is hydrated from the owning role and ignored on writes.
	RoleName string `json:"role_name"`
}

// Validate checks the fields an entitlement must carry before it is stored.
// An empty scope is normalized to ScopeGlobal.
func (e *RoleEntitlement) Validate() error {
	if e.RoleID == "" {
		return ErrInvalidReference
	}
	if strings.TrimSpace(e.Entitlement) == "" {
		return ErrInvalidName
	}
	if e.Scope == "" {
		e.Scope = ScopeGlobal
	}
	if !ValidScope(e.Scope) {
		return ErrInvalidScope
	}
	return nil
}
