package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/internal/paths"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "ROLEBOOK"
)

// Config keys in config.yaml.
const (
	cfgKeyBackend      = "backend"
	cfgKeyDataDir      = "data_dir"
	cfgKeySyncStrategy = "sync_strategy"
	cfgKeySeedDefaults = "seed_defaults"
	cfgKeyLogLevel     = "log.level"
	cfgKeyLogFormat    = "log.format"
	cfgKeyServerAddr   = "server.addr"
	cfgKeyCORSOrigins  = "server.cors_origins"
)

const defaultServerAddr = ":8080"

// envKeys may be overridden by ROLEBOOK_* variables (for example
// ROLEBOOK_LOG_LEVEL). data_dir is resolved separately so that config.yaml
// keeps precedence over ROLEBOOK_DATA_DIR.
var envKeys = []string{
	cfgKeyBackend, cfgKeySyncStrategy, cfgKeySeedDefaults,
	cfgKeyLogLevel, cfgKeyLogFormat, cfgKeyServerAddr, cfgKeyCORSOrigins,
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# rolebook configuration

# Storage backend
backend: sqlite

# Data directory (optional; overridden by --data-dir)
# data_dir:

# When JSONL files are rewritten: immediate or on_close
sync_strategy: immediate

# Create the built-in administrator role in an empty store
seed_defaults: true

log:
  level: info
  format: text

server:
  addr: ":8080"
  cors_origins: []
`

// loadConfig resolves the config directory, writes a default config.yaml
// on first run and reads it with Viper. It also applies the log settings.
func (a *app) loadConfig() error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, "text")
	v.SetDefault(cfgKeyServerAddr, defaultServerAddr)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if err := log.Configure(v.GetString(cfgKeyLogLevel), v.GetString(cfgKeyLogFormat)); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	a.configDir = configDir
	a.cfg = v
	return nil
}

// ensureDefaultConfigFile creates the config directory and a default
// config.yaml when either is missing.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
