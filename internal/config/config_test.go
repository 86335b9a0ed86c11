package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

func TestLoadBytesAppliesDefaults(t *testing.T) {
	t.Setenv(EnvTarget, "")
	t.Setenv(EnvSystemDebug, "")

	cfg, err := LoadBytes([]byte("repository:\n  url: https://dev.azure.com/acme/data/_git/warehouse\n"))
	require.NoError(t, err)

	assert.Equal(t, "warehouse", cfg.Repository.Name)
	assert.Equal(t, "main", cfg.Repository.Reference)
	assert.Equal(t, DefaultProjectDir, cfg.Repository.ProjectDir)
	assert.Equal(t, GitBackendGoGit, cfg.Repository.Backend)
	assert.Equal(t, SecretsProviderEnv, cfg.Secrets.Provider)
	assert.Equal(t, DefaultTokenKey, cfg.Secrets.TokenKey)
	assert.Equal(t, DefaultClientSecretKey, cfg.Secrets.ClientSecretKey)
	assert.Equal(t, "dbt", cfg.Build.Binary)
	assert.Equal(t, TierStaging, cfg.Build.Target)
	assert.Equal(t, DefaultStorageRoot, cfg.Storage.Root)
	assert.Equal(t, []string{"DEV", "STG"}, cfg.Deploy.RestrictedEnvironments)
}

func TestLoadBytesExpandsEnvironment(t *testing.T) {
	t.Setenv("DBTRUNNER_TEST_REPO", "https://example.com/org/project.git")
	t.Setenv(EnvTarget, "")

	cfg, err := LoadBytes([]byte("repository:\n  url: ${DBTRUNNER_TEST_REPO}\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/org/project.git", cfg.Repository.URL)
	assert.Equal(t, "project", cfg.Repository.Name)
}

func TestLoadBytesNormalizesEnums(t *testing.T) {
	t.Setenv(EnvTarget, "")
	t.Setenv(EnvSystemDebug, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := LoadBytes([]byte(`
repository:
  url: https://example.com/a/b
  backend: CLI
build:
  target: Production
logging:
  level: WARNING
  format: JSON
deploy:
  restricted_environments: [" dev ", "Stg", "DEV"]
`))
	require.NoError(t, err)
	assert.Equal(t, GitBackendCLI, cfg.Repository.Backend)
	assert.Equal(t, TierProd, cfg.Build.Target)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, []string{"DEV", "STG"}, cfg.Deploy.RestrictedEnvironments)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTarget, "prod")
	t.Setenv(EnvStorageRoot, "/mnt/durable")
	t.Setenv(EnvReference, "release-1.2")
	t.Setenv(EnvSystemDebug, "true")

	cfg, err := LoadBytes([]byte("repository:\n  url: https://example.com/a/b\n"))
	require.NoError(t, err)
	assert.Equal(t, TierProd, cfg.Build.Target)
	assert.Equal(t, "/mnt/durable", cfg.Storage.Root)
	assert.Equal(t, "release-1.2", cfg.Repository.Reference)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
}

func TestValidationRejectsBadValues(t *testing.T) {
	t.Setenv(EnvTarget, "")

	_, err := LoadBytes([]byte(`
repository:
  url: https://example.com/a/b
  project_dir: ../outside
secrets:
  provider: nats
build:
  steps:
    - name: ""
      args: []
`))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
	assert.Contains(t, err.Error(), "repository.project_dir")
	assert.Contains(t, err.Error(), "secrets.nats.url")
	assert.Contains(t, err.Error(), "build.steps[0].name")
	assert.Contains(t, err.Error(), "build.steps[0].args")
}

func TestRequireRepository(t *testing.T) {
	cfg, err := Finish(&Config{})
	require.NoError(t, err)

	err = RequireRepository(cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Setenv(EnvTarget, "")
	path := filepath.Join(t.TempDir(), "nested", "dbtrunner.yaml")

	require.NoError(t, Init(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warehouse", cfg.Repository.Name)
	assert.Equal(t, "dbt", cfg.Repository.ProjectDir)

	err = Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	p, err := ResolvePath("explicit.yaml")
	require.NoError(t, err)
	assert.Equal(t, "explicit.yaml", p)

	require.NoError(t, os.WriteFile(DefaultFileName, []byte("version: \"1.0\"\n"), 0o600))
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFileName, p)
}

func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DBTRUNNER_TEST_KEEP", "process")
	require.NoError(t, os.WriteFile(".env", []byte("DBTRUNNER_TEST_KEEP=file\nDBTRUNNER_TEST_NEW=file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("DBTRUNNER_TEST_NEW") })

	loaded, err := LoadEnvFiles()
	require.NoError(t, err)
	assert.Equal(t, ".env", loaded)
	assert.Equal(t, "process", os.Getenv("DBTRUNNER_TEST_KEEP"))
	assert.Equal(t, "file", os.Getenv("DBTRUNNER_TEST_NEW"))
}

func TestRepositoryNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://dev.azure.com/org/project/_git/warehouse": "warehouse",
		"https://github.com/org/repo.git":                  "repo",
		"git@github.com:org/repo.git":                      "repo",
		"https://github.com/org/repo/":                     "repo",
	}
	for in, want := range tests {
		assert.Equal(t, want, RepositoryNameFromURL(in), in)
	}
}
