package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// ValidateConfig checks a defaulted configuration. The repository URL is only required by
// the run command, so it is checked separately with RequireRepository.
func ValidateConfig(cfg *Config) error {
	result := foundation.Valid().
		Combine(validateRepository(cfg.Repository)).
		Combine(validateSecrets(cfg.Secrets)).
		Combine(validateBuild(cfg.Build)).
		Combine(validateStorage(cfg.Storage))
	if result.Valid {
		return nil
	}
	return errors.ConfigError("configuration validation failed: "+strings.Join(result.Messages(), "; ")).
		WithContext("fields", len(result.Errors)).
		Build()
}

// RequireRepository reports a configuration error when no repository URL is configured.
func RequireRepository(cfg *Config) error {
	if strings.TrimSpace(cfg.Repository.URL) == "" {
		return errors.ConfigError("repository.url is required").Build()
	}
	return nil
}

func validateRepository(r RepositoryConfig) foundation.ValidationResult {
	res := foundation.OneOf("repository.backend", []GitBackend{GitBackendGoGit, GitBackendCLI})(r.Backend)
	if filepath.IsAbs(r.ProjectDir) || strings.HasPrefix(filepath.Clean(r.ProjectDir), "..") {
		res = res.Combine(foundation.Invalid(foundation.NewValidationError(
			"repository.project_dir", "relative", "must be a path inside the repository")))
	}
	if strings.ContainsAny(r.Name, `/\`) {
		res = res.Combine(foundation.Invalid(foundation.NewValidationError(
			"repository.name", "plain", "must not contain path separators")))
	}
	return res
}

func validateSecrets(s SecretsConfig) foundation.ValidationResult {
	res := foundation.NewValidatorChain(
		foundation.OneOf("secrets.provider", []SecretsProvider{SecretsProviderEnv, SecretsProviderFile, SecretsProviderNATS}),
	).Validate(s.Provider)
	res = res.Combine(foundation.StringNotEmpty("secrets.token_key")(s.TokenKey)).
		Combine(foundation.StringNotEmpty("secrets.client_secret_key")(s.ClientSecretKey))

	switch s.Provider {
	case SecretsProviderFile:
		res = res.Combine(foundation.StringNotEmpty("secrets.directory")(s.Directory))
	case SecretsProviderNATS:
		res = res.Combine(foundation.StringNotEmpty("secrets.nats.url")(s.NATS.URL)).
			Combine(foundation.StringNotEmpty("secrets.nats.bucket")(s.NATS.Bucket))
	}
	return res
}

func validateBuild(b BuildConfig) foundation.ValidationResult {
	res := foundation.StringNotEmpty("build.binary")(b.Binary).
		Combine(foundation.OneOf("build.target", []TargetTier{TierProd, TierStaging})(b.Target))
	for i, s := range b.Steps {
		if strings.TrimSpace(s.Name) == "" {
			res = res.Combine(foundation.Invalid(foundation.NewValidationError(
				fmt.Sprintf("build.steps[%d].name", i), "required", "must not be empty")))
		}
		if len(s.Args) == 0 {
			res = res.Combine(foundation.Invalid(foundation.NewValidationError(
				fmt.Sprintf("build.steps[%d].args", i), "required", "must list at least one argument")))
		}
	}
	if b.Docs != nil && len(b.Docs.Args) == 0 {
		res = res.Combine(foundation.Invalid(foundation.NewValidationError(
			"build.docs.args", "required", "must list at least one argument")))
	}
	return res
}

func validateStorage(s StorageConfig) foundation.ValidationResult {
	return foundation.StringNotEmpty("storage.root")(s.Root)
}
