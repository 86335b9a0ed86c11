// Package secrets looks up credentials by key. The run depends only on the Provider
// interface, so tests inject a StaticProvider and production selects env, file or NATS KV.
package secrets

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// Provider supplies a secret value for a key.
type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// MissingSecretError reports a key the provider does not hold.
type MissingSecretError struct {
	Key      string
	Provider string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("secret %q not found in %s provider", e.Key, e.Provider)
}

func (e *MissingSecretError) Category() errors.ErrorCategory { return errors.CategorySecrets }

func (e *MissingSecretError) Details() map[string]any {
	return map[string]any{"key": e.Key, "provider": e.Provider}
}

// StaticProvider serves secrets from an in-memory map.
type StaticProvider struct {
	values map[string]string
}

func NewStaticProvider(values map[string]string) *StaticProvider {
	return &StaticProvider{values: maps.Clone(values)}
}

func (p *StaticProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := p.values[key]
	if !ok || v == "" {
		return "", &MissingSecretError{Key: key, Provider: "static"}
	}
	return v, nil
}

// EnvProvider reads secrets from the process environment. A key is looked up verbatim,
// then as an upper-cased variable name with '-' and '.' replaced by '_' (AZURE-DEVOPS-PAT
// becomes AZURE_DEVOPS_PAT). Prefix is prepended to the variable name when set.
type EnvProvider struct {
	Prefix string
}

func (p EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, name := range p.names(key) {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", &MissingSecretError{Key: key, Provider: "env"}
}

func (p EnvProvider) names(key string) []string {
	sanitized := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	names := []string{p.Prefix + key}
	if sanitized != key {
		names = append(names, p.Prefix+sanitized)
	}
	return names
}

// FileProvider reads one file per key from a directory, as mounted secret volumes do.
// Trailing newlines are stripped.
type FileProvider struct {
	Dir string
}

func (p FileProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.SecretsError("invalid secret key").WithContext("key", key).Build()
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", &MissingSecretError{Key: key, Provider: "file"}
		}
		return "", errors.WrapError(err, errors.CategorySecrets, "failed to read secret file").
			WithContext("key", key).
			Build()
	}
	v := strings.TrimRight(string(data), "\r\n")
	if v == "" {
		return "", &MissingSecretError{Key: key, Provider: "file"}
	}
	return v, nil
}

// New builds the provider selected in the configuration. The returned close function
// releases connections and is never nil.
func New(ctx context.Context, cfg config.SecretsConfig) (Provider, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case config.SecretsProviderEnv, "":
		return EnvProvider{Prefix: cfg.EnvPrefix}, noop, nil
	case config.SecretsProviderFile:
		return FileProvider{Dir: cfg.Directory}, noop, nil
	case config.SecretsProviderNATS:
		p, err := NewNATSKVProvider(ctx, cfg.NATS.URL, cfg.NATS.Bucket)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	default:
		return nil, noop, errors.ConfigError("unknown secrets provider").
			WithContext("provider", string(cfg.Provider)).
			Build()
	}
}
