package types

import (
	"strings"
	"time"
)

// ClaimRoleModel is a role granted to holders of a specific identity claim
// (for example claim_type "groups", claim_value "finance-admins"). EntityName
// and Action say which entity's screens the role opens and what it may do
// there.
type ClaimRoleModel struct {
	RoleID      string       `json:"role_id"`     // UUID v7, generated on creation.
	Name        string       `json:"name"`        // Unique role name (required).
	ClaimType   string       `json:"claim_type"`  // Claim key matched against identity tokens (required).
	ClaimValue  string       `json:"claim_value"` // Claim value that grants the role (required).
	EntityName  string       `json:"entity_name"` // Entity the actions apply to; "*" for every entity.
	Action      []LayoutType `json:"action"`      // Allowed layouts, sorted and without duplicates.
	Description string       `json:"description"` // Free text.
	Priority    int64        `json:"priority"`    // Higher wins when several roles match.
	CreatedAt   time.Time    `json:"created_at"`  // Timestamp of creation.
	UpdatedAt   time.Time    `json:"updated_at"`  // Timestamp of last modification.

	// EntitlementCount is hydrated by the store from role_entitlements and
	// ignored on writes.
	EntitlementCount int64 `json:"entitlement_count"`
}

// Validate checks the fields a role must carry before it is stored. Action
// is normalized to a sorted list without duplicates.
func (r *ClaimRoleModel) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.ClaimType) == "" || strings.TrimSpace(r.ClaimValue) == "" {
		return ErrInvalidData
	}
	actions, ok := normalizeLayouts(r.Action)
	if !ok {
		return ErrInvalidData
	}
	r.Action = actions
	return nil
}
