package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const (
	DefaultTokenKey        = "AZURE-DEVOPS-PAT"
	DefaultClientSecretKey = "FABRIC-CLIENT-SECRET"
	DefaultStorageRoot     = "/lakehouse/default/Files/dbt"
	DefaultProjectDir      = "dbt"
	DefaultOutputDir       = "target"
	DefaultOutputTailBytes = 64 * 1024
	DefaultMetricsTextfile = "dbtrunner.prom"
	DefaultJournalFile     = "dbtrunner-journal.db"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type repositoryDefaults struct{}

func (repositoryDefaults) Domain() string { return "repository" }

func (repositoryDefaults) ApplyDefaults(cfg *Config) error {
	r := &cfg.Repository
	if r.Reference == "" {
		r.Reference = "main"
	}
	if r.ProjectDir == "" {
		r.ProjectDir = DefaultProjectDir
	}
	if r.Backend == "" {
		r.Backend = GitBackendGoGit
	}
	if r.GitBinary == "" {
		r.GitBinary = "git"
	}
	if r.Name == "" && r.URL != "" {
		r.Name = RepositoryNameFromURL(r.URL)
	}
	return nil
}

type secretsDefaults struct{}

func (secretsDefaults) Domain() string { return "secrets" }

func (secretsDefaults) ApplyDefaults(cfg *Config) error {
	s := &cfg.Secrets
	if s.Provider == "" {
		s.Provider = SecretsProviderEnv
	}
	if s.TokenKey == "" {
		s.TokenKey = DefaultTokenKey
	}
	if s.ClientSecretKey == "" {
		s.ClientSecretKey = DefaultClientSecretKey
	}
	return nil
}

type buildDefaults struct{}

func (buildDefaults) Domain() string { return "build" }

func (buildDefaults) ApplyDefaults(cfg *Config) error {
	b := &cfg.Build
	if b.Binary == "" {
		b.Binary = "dbt"
	}
	if b.Target == "" {
		b.Target = TierStaging
	}
	if b.OutputDir == "" {
		b.OutputDir = DefaultOutputDir
	}
	if b.OutputTailBytes == 0 {
		b.OutputTailBytes = DefaultOutputTailBytes
	}
	return nil
}

type storageDefaults struct{}

func (storageDefaults) Domain() string { return "storage" }

func (storageDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = DefaultStorageRoot
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Textfile == "" {
		cfg.Metrics.Textfile = filepath.Join(cfg.Storage.Root, DefaultMetricsTextfile)
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Storage.Root, DefaultJournalFile)
	}
	return nil
}

type observabilityDefaults struct{}

func (observabilityDefaults) Domain() string { return "logging" }

func (observabilityDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	return nil
}

type deployDefaults struct{}

func (deployDefaults) Domain() string { return "deploy" }

func (deployDefaults) ApplyDefaults(cfg *Config) error {
	if len(cfg.Deploy.RestrictedEnvironments) == 0 {
		cfg.Deploy.RestrictedEnvironments = []string{"DEV", "STG"}
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	repositoryDefaults{},
	secretsDefaults{},
	buildDefaults{},
	storageDefaults{},
	observabilityDefaults{},
	deployDefaults{},
}

// ApplyDefaults fills every unset field with its documented default.
func ApplyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// RepositoryNameFromURL derives the clone directory name from the last path segment.
func RepositoryNameFromURL(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSuffix(path.Base(trimmed), ".git")
}
