package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// builtInRole describes a role created on first startup.
type builtInRole struct {
	name         string
	claimType    string
	claimValue   string
	entityName   string
	actions      string // JSON array of layout types
	description  string
	entitlements []builtInEntitlement
}

type builtInEntitlement struct {
	entitlement string
	scope       string
}

// builtInRoles are seeded when Config.SeedDefaults is set and no role exists.
var builtInRoles = []builtInRole{
	{
		name:        "administrator",
		claimType:   "role",
		claimValue:  "admin",
		entityName:  "*",
		actions:     "[1,2,3]",
		description: "Full access to every entitlement",
		entitlements: []builtInEntitlement{
			{"*", types.ScopeGlobal},
		},
	},
}

// seedBuiltInRoles creates the built-in roles and their entitlements if the
// claim_roles table is empty. Running it against a populated store is a
// no-op. The caller must hold b.mu for writing.
func (b *Backend) seedBuiltInRoles() error {
	var count int
	if err := b.db.QueryRow("SELECT COUNT(*) FROM claim_roles").Scan(&count); err != nil {
		return fmt.Errorf("counting claim roles: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := formatTime(time.Now())

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, br := range builtInRoles {
		roleID, err := newUUID()
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO claim_roles
    (role_id, name, claim_type, claim_value, entity_name, action, description, priority, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			roleID, br.name, br.claimType, br.claimValue, br.entityName, br.actions, br.description, now, now)
		if err != nil {
			return fmt.Errorf("seeding role %s: %w", br.name, err)
		}

		for _, be := range br.entitlements {
			entID, err := newUUID()
			if err != nil {
				return err
			}
			_, err = tx.Exec(`INSERT INTO role_entitlements
    (entitlement_id, role_id, entitlement, scope, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, 1, ?, ?)`,
				entID, roleID, be.entitlement, be.scope, now, now)
			if err != nil {
				return fmt.Errorf("seeding entitlement %s for %s: %w", be.entitlement, br.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	b.log.WithField("roles", len(builtInRoles)).Info("seeded built-in roles")
	return b.persistLocked(types.TableClaimRoles, types.TableRoleEntitlements)
}
