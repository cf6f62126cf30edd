package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/patch"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long:  "Create the configuration directory with a default config.yaml, then create and load the data directory.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			if err := a.withStore(func(types.Store) error { return nil }); err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			out := cmd.OutOrStdout()
			if a.jsonMode {
				return printJSON(out, map[string]string{"config_dir": a.configDir, "data_dir": cfg.DataDir})
			}
			fmt.Fprintln(out, "rolebook initialized")
			fmt.Fprintln(out, "  config:", a.configDir)
			fmt.Fprintln(out, "  data:  ", cfg.DataDir)
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Get an entity by ID",
		Long: `Get retrieves one entity and prints it as JSON.

Valid table names: ` + tableNames,
		Example: `  rolebook get users 0190f5a2-...`,
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store types.Store) error {
				e, err := openEntity(store, args[0])
				if err != nil {
					return err
				}
				rec, err := e.get(args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <table> <json|->",
		Short: "Create an entity from JSON",
		Long: `Create stores a new entity and prints its generated ID. Pass "-" to read
the JSON from standard input.

Valid table names: ` + tableNames,
		Example: `  rolebook create claim_roles '{"name":"auditors","claim_type":"groups","claim_value":"audit"}'`,
		Args:    usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			return a.withStore(func(store types.Store) error {
				e, err := openEntity(store, args[0])
				if err != nil {
					return err
				}
				id, err := e.create(data)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <id> <json|->",
		Short: "Replace an entity with JSON",
		Long: `Update replaces every field of an existing entity. Use patch to change
individual fields.

Valid table names: ` + tableNames,
		Args: usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[2])
			if err != nil {
				return err
			}
			return a.withStore(func(store types.Store) error {
				e, err := openEntity(store, args[0])
				if err != nil {
					return err
				}
				return e.update(args[1], data)
			})
		},
	}
}

func newPatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "patch <table> <id> <json-patch|->",
		Short: "Apply a JSON patch document to an entity",
		Long: `Patch applies a JSON array of replace, add and remove operations on
top-level fields. The document is checked in full before any field changes.

Patchable fields:
` + patchFieldsHelp(),
		Example: `  rolebook patch users 0190f5a2-... '[{"op":"replace","path":"/is_active","value":false}]'`,
		Args:    usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[2])
			if err != nil {
				return err
			}
			doc, err := patch.Parse(data)
			if err != nil {
				return err
			}
			return a.withStore(func(store types.Store) error {
				e, err := openEntity(store, args[0])
				if err != nil {
					return err
				}
				return e.patch(args[1], doc)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete an entity",
		Long: `Delete removes an entity. Deleting a claim role also deletes its
entitlements and unassigns it from users.

Valid table names: ` + tableNames,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store types.Store) error {
				e, err := openEntity(store, args[0])
				if err != nil {
					return err
				}
				return e.delete(args[1])
			})
		},
	}
}

// patchFieldsHelp lists the patchable fields of every table, one table per
// line.
func patchFieldsHelp() string {
	var b strings.Builder
	for _, table := range types.StandardTableNames {
		fields, err := service.PatchFields(table)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", table, strings.Join(fields, ", "))
	}
	return b.String()
}
