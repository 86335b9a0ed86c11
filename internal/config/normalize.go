package config

import (
	"fmt"
	"sort"
	"strings"
)

// enumNormalizer maps case-insensitive, trimmed strings onto a typed enum with a fallback.
type enumNormalizer[T ~string] struct {
	values       map[string]T
	defaultValue T
}

func newEnumNormalizer[T ~string](values map[string]T, defaultValue T) *enumNormalizer[T] {
	return &enumNormalizer[T]{values: values, defaultValue: defaultValue}
}

func (n *enumNormalizer[T]) lookup(raw string) (T, bool) {
	v, ok := n.values[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}

// Normalize returns the canonical value or the default for unknown input.
func (n *enumNormalizer[T]) Normalize(raw string) T {
	if v, ok := n.lookup(raw); ok {
		return v
	}
	return n.defaultValue
}

func (n *enumNormalizer[T]) validKeys() []string {
	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GitBackend selects the repository fetcher implementation.
type GitBackend string

const (
	GitBackendGoGit GitBackend = "gogit"
	GitBackendCLI   GitBackend = "cli"
)

var gitBackendNormalizer = newEnumNormalizer(map[string]GitBackend{
	"gogit":  GitBackendGoGit,
	"go-git": GitBackendGoGit,
	"cli":    GitBackendCLI,
	"git":    GitBackendCLI,
}, GitBackendGoGit)

func NormalizeGitBackend(raw string) GitBackend { return gitBackendNormalizer.Normalize(raw) }

// SecretsProvider selects where secrets are looked up.
type SecretsProvider string

const (
	SecretsProviderEnv  SecretsProvider = "env"
	SecretsProviderFile SecretsProvider = "file"
	SecretsProviderNATS SecretsProvider = "nats"
)

var secretsProviderNormalizer = newEnumNormalizer(map[string]SecretsProvider{
	"env":  SecretsProviderEnv,
	"file": SecretsProviderFile,
	"nats": SecretsProviderNATS,
}, SecretsProviderEnv)

func NormalizeSecretsProvider(raw string) SecretsProvider {
	return secretsProviderNormalizer.Normalize(raw)
}

// TargetTier is the build target environment handed to the build tool.
type TargetTier string

const (
	TierProd    TargetTier = "prod"
	TierStaging TargetTier = "staging"
)

var targetTierNormalizer = newEnumNormalizer(map[string]TargetTier{
	"prod":       TierProd,
	"production": TierProd,
	"staging":    TierStaging,
	"stg":        TierStaging,
}, TierStaging)

// NormalizeTargetTier maps anything that is not a production alias to staging.
func NormalizeTargetTier(raw string) TargetTier { return targetTierNormalizer.Normalize(raw) }

// IsProd reports whether the tier is production.
func (t TargetTier) IsProd() bool { return t == TierProd }

// NormalizationResult collects human readable notes about coerced values.
type NormalizationResult struct {
	Warnings []string
}

func (r *NormalizationResult) add(msg string) { r.Warnings = append(r.Warnings, msg) }

// NormalizeConfig case-folds enumerations in place. Empty values are left for ApplyDefaults.
func NormalizeConfig(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	if c == nil {
		return res
	}
	normalizeEnum("repository.backend", &c.Repository.Backend, gitBackendNormalizer, res)
	normalizeEnum("secrets.provider", &c.Secrets.Provider, secretsProviderNormalizer, res)
	normalizeEnum("build.target", &c.Build.Target, targetTierNormalizer, res)
	normalizeEnum("logging.level", &c.Logging.Level, logLevelNormalizer, res)
	normalizeEnum("logging.format", &c.Logging.Format, logFormatNormalizer, res)

	if c.Build.OutputTailBytes < 0 {
		res.add(warnChanged("build.output_tail_bytes", c.Build.OutputTailBytes, 0))
		c.Build.OutputTailBytes = 0
	}
	c.Deploy.RestrictedEnvironments = normalizeEnvironments(c.Deploy.RestrictedEnvironments)
	return res
}

func normalizeEnum[T ~string](field string, v *T, n *enumNormalizer[T], res *NormalizationResult) {
	raw := string(*v)
	if raw == "" {
		return
	}
	canon, ok := n.lookup(raw)
	if !ok {
		res.add(warnUnknown(field, raw, string(n.defaultValue), n.validKeys()))
		*v = n.defaultValue
		return
	}
	if string(canon) != raw {
		res.add(warnChanged(field, raw, canon))
	}
	*v = canon
}

func normalizeEnvironments(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		e = strings.ToUpper(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string, valid []string) string {
	return fmt.Sprintf("unknown %s '%s' (valid: %s), defaulting to %s", field, value, strings.Join(valid, ", "), def)
}
