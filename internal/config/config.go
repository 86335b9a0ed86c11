package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// DefaultFileName is looked up in the current directory when no explicit path is given.
const DefaultFileName = "dbtrunner.yaml"

// Config is the complete dbtrunner configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Repository RepositoryConfig `yaml:"repository"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	Build      BuildConfig      `yaml:"build"`
	Storage    StorageConfig    `yaml:"storage"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Journal    JournalConfig    `yaml:"journal"`
	Deploy     DeployConfig     `yaml:"deploy"`
}

// RepositoryConfig describes the source tree that is fetched for every run.
type RepositoryConfig struct {
	URL        string     `yaml:"url"`
	Name       string     `yaml:"name,omitempty"`        // clone directory name; derived from URL when empty
	Reference  string     `yaml:"reference,omitempty"`   // branch or tag
	ProjectDir string     `yaml:"project_dir,omitempty"` // build tool project inside the clone
	Backend    GitBackend `yaml:"backend,omitempty"`
	GitBinary  string     `yaml:"git_binary,omitempty"` // cli backend only
}

// SecretsConfig selects the secret provider and the key names looked up through it.
type SecretsConfig struct {
	Provider        SecretsProvider `yaml:"provider,omitempty"`
	TokenKey        string          `yaml:"token_key,omitempty"`
	ClientSecretKey string          `yaml:"client_secret_key,omitempty"`
	Directory       string          `yaml:"directory,omitempty"`  // file provider
	EnvPrefix       string          `yaml:"env_prefix,omitempty"` // env provider
	NATS            NATSConfig      `yaml:"nats,omitempty"`
}

// NATSConfig points the NATS KV provider at a JetStream key-value bucket.
type NATSConfig struct {
	URL    string `yaml:"url,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
}

// StepConfig is one build tool invocation.
type StepConfig struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

// BuildConfig configures the build tool and the fixed step sequence.
type BuildConfig struct {
	Binary          string       `yaml:"binary,omitempty"`
	Target          TargetTier   `yaml:"target,omitempty"`
	ProfilesDir     string       `yaml:"profiles_dir,omitempty"`
	OutputDir       string       `yaml:"output_dir,omitempty"` // relative to the project dir
	Steps           []StepConfig `yaml:"steps,omitempty"`
	Docs            *StepConfig  `yaml:"docs,omitempty"`
	OutputTailBytes int          `yaml:"output_tail_bytes,omitempty"`
}

// StorageConfig is the durable location receiving docs and build state.
type StorageConfig struct {
	Root string `yaml:"root,omitempty"`
}

// WorkspaceConfig controls where the repository is cloned.
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir,omitempty"` // empty means a fresh temporary directory
	Keep    bool   `yaml:"keep,omitempty"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig enables the prometheus textfile written after each run.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile,omitempty"`
}

// JournalConfig enables the sqlite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// DeployConfig configures the deployment entry point.
type DeployConfig struct {
	Command                []string `yaml:"command,omitempty"`
	RestrictedEnvironments []string `yaml:"restricted_environments,omitempty"`
}

// ResolvePath returns the configuration file to load. An explicit path wins; otherwise
// ./dbtrunner.yaml, then the XDG config location ($XDG_CONFIG_HOME/dbtrunner/config.yaml).
// An empty string with a nil error means no file was found and defaults apply.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, nil
	}
	path, err := xdg.SearchConfigFile(filepath.Join("dbtrunner", "config.yaml"))
	if err != nil {
		return "", nil //nolint:nilerr // no config file anywhere is a valid setup
	}
	return path, nil
}

// Load reads, normalizes, defaults and validates a configuration file. An empty path yields
// the default configuration. Environment variables are loaded from .env files first and
// ${VAR} references in the YAML are expanded.
func Load(configPath string) (*Config, error) {
	if loaded, err := LoadEnvFiles(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	} else if loaded != "" {
		slog.Debug("Loaded environment variables", "path", loaded)
	}

	if configPath == "" {
		return Finish(&Config{})
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return LoadBytes(data)
}

// LoadBytes parses YAML configuration content (after env expansion) and finishes it.
func LoadBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Build()
	}
	return Finish(&cfg)
}

// Finish runs normalization, defaults and validation on an already populated Config.
func Finish(cfg *Config) (*Config, error) {
	res := NormalizeConfig(cfg)
	for _, w := range res.Warnings {
		slog.Warn("config normalization", "warning", w)
	}
	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	ApplyEnvOverrides(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Version: "1.0",
		Repository: RepositoryConfig{
			URL:        "https://dev.azure.com/example/analytics/_git/warehouse",
			Reference:  "main",
			ProjectDir: "dbt",
			Backend:    GitBackendGoGit,
		},
		Secrets: SecretsConfig{
			Provider:        SecretsProviderEnv,
			TokenKey:        DefaultTokenKey,
			ClientSecretKey: DefaultClientSecretKey,
		},
		Build: BuildConfig{
			Binary: "dbt",
			Target: TierStaging,
		},
		Storage: StorageConfig{Root: DefaultStorageRoot},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Deploy: DeployConfig{
			RestrictedEnvironments: []string{"DEV", "STG"},
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal config").Build()
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create config directory").Build()
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
