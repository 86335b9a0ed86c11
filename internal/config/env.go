package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted after the file is loaded.
const (
	EnvTarget      = "DBTRUNNER_TARGET"
	EnvStorageRoot = "DBTRUNNER_STORAGE_ROOT"
	EnvReference   = "DBTRUNNER_REFERENCE"
	EnvLogLevel    = "DBTRUNNER_LOG_LEVEL"
	EnvSystemDebug = "SYSTEM_DEBUG"
)

var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads the first present .env file into the process environment.
// Variables that are already set are not overwritten. It returns the file that was loaded.
func LoadEnvFiles() (string, error) {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return "", err
		}
		return name, nil
	}
	return "", nil
}

// ApplyEnvOverrides lets the job environment pick the tier, storage root, reference and log level.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvTarget)); v != "" {
		cfg.Build.Target = NormalizeTargetTier(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageRoot)); v != "" {
		cfg.Storage.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvReference)); v != "" {
		cfg.Repository.Reference = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = NormalizeLogLevel(v)
	}
	if SystemDebug() {
		cfg.Logging.Level = LogLevelDebug
	}
}

// SystemDebug reports whether the hosting pipeline asked for debug output (SYSTEM_DEBUG=true).
func SystemDebug() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvSystemDebug)))
	return err == nil && v
}
