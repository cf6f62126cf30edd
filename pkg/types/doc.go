// Package types defines the Store and Table interfaces, the entity types
// (User, ClaimRoleModel, RoleEntitlement) and the standard errors shared by
// every rolebook package.
package types
