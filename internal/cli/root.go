// Package cli implements the rolebook command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/rolebook/internal/paths"
	"github.com/mesh-intelligence/rolebook/internal/sqlite"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks command-line mistakes: bad flags, wrong argument counts,
// unreadable input.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// app holds the global flags and the loaded configuration for one command
// tree. Every NewRootCmd call gets its own.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	cfg *viper.Viper
}

// NewRootCmd creates the top-level "rolebook" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "rolebook",
		Short: "Administer users, claim roles and role entitlements",
		Long: `rolebook manages users, the claim roles they hold and the entitlements
those roles grant. Data lives in JSONL files in the data directory.`,
		Version:       Version,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $"+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newPatchCmd(a),
		newDeleteCmd(a),
		newAllowedCmd(a),
		newServeCmd(a),
	)
	return root
}

// usageArgs tags argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(stderr, "rolebook:", err)
	}
	return exitCode(err)
}

// exitCode maps an error to the process exit code: user errors are 1 and
// anything unexpected is 2.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrTableNotFound):
		return exitUserError
	default:
		return exitSysError
	}
}

// storeConfig builds the store configuration from config.yaml and flags.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		Backend:      a.cfg.GetString(cfgKeyBackend),
		DataDir:      dataDir,
		SyncStrategy: a.cfg.GetString(cfgKeySyncStrategy),
		SeedDefaults: a.cfg.GetBool(cfgKeySeedDefaults),
	}, nil
}

// withStore runs fn against an attached store and detaches afterwards.
func (a *app) withStore(fn func(types.Store) error) error {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	return sqlite.WithStore(cfg, fn)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rolebook version",
		Args:  usageArgs(cobra.NoArgs),
		// The version command needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "rolebook", Version)
		},
	}
}
