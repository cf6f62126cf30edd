package types

// Standard table names for Store.GetTable.
const (
	TableUsers            = "users"
	TableClaimRoles       = "claim_roles"
	TableRoleEntitlements = "role_entitlements"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	TableUsers,
	TableClaimRoles,
	TableRoleEntitlements,
}
