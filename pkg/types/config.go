package types

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend      string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir      string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	SyncStrategy string `json:"sync_strategy" yaml:"sync_strategy" mapstructure:"sync_strategy"`

	// SeedDefaults creates the built-in administrator role on an empty
	// store at Attach.
	SeedDefaults bool `json:"seed_defaults" yaml:"seed_defaults" mapstructure:"seed_defaults"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Sync strategies control when JSONL files are rewritten.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
)

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrSyncStrategyUnknown = errors.New("unknown sync strategy")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownSyncStrategies = map[string]bool{
	"":            true,
	SyncImmediate: true,
	SyncOnClose:   true,
}

// Validate checks that the Config is well-formed. Every problem is reported;
// errors.Is matches each sentinel in the result.
func (c Config) Validate() error {
	var result *multierror.Error
	switch {
	case c.Backend == "":
		result = multierror.Append(result, ErrBackendEmpty)
	case !knownBackends[c.Backend]:
		result = multierror.Append(result, ErrBackendUnknown)
	}
	if !knownSyncStrategies[c.SyncStrategy] {
		result = multierror.Append(result, ErrSyncStrategyUnknown)
	}
	return result.ErrorOrNil()
}

// EffectiveSyncStrategy returns the sync strategy, defaulting to immediate.
func (c Config) EffectiveSyncStrategy() string {
	if c.SyncStrategy == "" {
		return SyncImmediate
	}
	return c.SyncStrategy
}
