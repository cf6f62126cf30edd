package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rolebook/internal/authz"
	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

type allowedResult struct {
	UserID      string   `json:"user_id"`
	Entitlement string   `json:"entitlement"`
	Scope       string   `json:"scope"`
	Allowed     bool     `json:"allowed"`
	Roles       []string `json:"roles"`
}

func newAllowedCmd(a *app) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "allowed <user-id> <entitlement>",
		Short: "Check whether a user holds an entitlement",
		Long: `Allowed evaluates the user's role against the enabled entitlements of
that role. A global entitlement satisfies every scope, and patterns such as
"reports:*" match by prefix. Inactive users hold nothing.

Scopes: ` + strings.Join(types.Scopes, ", "),
		Example: `  rolebook allowed 0190f5a2-... reports:read --scope tenant`,
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, entitlement := args[0], args[1]
			return a.withStore(func(store types.Store) error {
				users, err := service.NewUsers(store)
				if err != nil {
					return err
				}
				if _, err := users.GetByID(userID); err != nil {
					return err
				}
				enforcer, err := authz.Load(store)
				if err != nil {
					return err
				}
				ok, err := enforcer.Allowed(userID, entitlement, scope)
				if err != nil {
					return err
				}
				roles, err := enforcer.RolesFor(userID)
				if err != nil {
					return err
				}
				res := allowedResult{UserID: userID, Entitlement: entitlement, Scope: scope, Allowed: ok, Roles: roles}
				out := cmd.OutOrStdout()
				if a.jsonMode {
					return printJSON(out, res)
				}
				verdict := "denied"
				if ok {
					verdict = "allowed"
				}
				fmt.Fprintf(out, "%s: %s in %s scope (roles: %s)\n", verdict, entitlement, scope, strings.Join(roles, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", types.ScopeGlobal, "scope to check")
	return cmd
}
