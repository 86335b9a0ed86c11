package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/eventstore"
	ferrors "git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/git"
	"git.home.luguber.info/inful/dbtrunner/internal/publish"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
	"git.home.luguber.info/inful/dbtrunner/internal/report"
	"git.home.luguber.info/inful/dbtrunner/internal/secrets"
	"git.home.luguber.info/inful/dbtrunner/internal/steps"
	"git.home.luguber.info/inful/dbtrunner/internal/workspace"
)

const (
	testToken        = "pat-7f3c9e1d2b4a6085"
	testClientSecret = "fabric-secret-91c2e7"
)

// fakeFetcher lays out a checkout containing the project directory.
type fakeFetcher struct {
	requests []git.Request
	err      error
}

func (f *fakeFetcher) Fetch(_ context.Context, req git.Request) (git.FetchOutcome, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return git.FetchOutcome{ExitCode: 128}, f.err
	}
	if err := os.MkdirAll(filepath.Join(req.Destination, "dbt"), 0o750); err != nil {
		return git.FetchOutcome{ExitCode: 1}, err
	}
	return git.FetchOutcome{}, nil
}

// fakeInvoker succeeds every step; the docs step writes the static page unless skipDocs.
type fakeInvoker struct {
	calls    []steps.Invocation
	failStep string
	skipDocs bool
}

func (f *fakeInvoker) Invoke(_ context.Context, inv steps.Invocation) steps.Outcome {
	f.calls = append(f.calls, inv)
	if inv.Args[0] == f.failStep {
		return steps.Outcome{ExitCode: 1, Stderr: "Database Error: login failed for secret " + testClientSecret}
	}
	target := filepath.Join(inv.Dir, "target")
	_ = os.MkdirAll(target, 0o750)
	switch inv.Args[0] {
	case "build":
		_ = os.WriteFile(filepath.Join(target, publish.ManifestFile), []byte(`{"nodes":{}}`), 0o600)
		_ = os.WriteFile(filepath.Join(target, publish.RunResultsFile), []byte(`{"results":[]}`), 0o600)
	case "docs":
		if !f.skipDocs {
			_ = os.WriteFile(filepath.Join(target, publish.StaticDocsFile), []byte("<html><title>dbt Docs</title></html>"), 0o600)
		}
	}
	return steps.Outcome{Stdout: "Completed successfully"}
}

func (f *fakeInvoker) names() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Args[0]
	}
	return out
}

type harness struct {
	plan     *RunPlan
	fetcher  *fakeFetcher
	invoker  *fakeInvoker
	journal  *eventstore.Journal
	redactor *redact.Redactor
	logs     *bytes.Buffer
	storage  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	storageRoot := filepath.Join(t.TempDir(), "lakehouse", "Files", "dbt")
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &harness{
		plan: &RunPlan{
			RunID:           "run-123",
			RepositoryURL:   "https://dev.azure.com/acme/analytics/_git/warehouse",
			RepositoryName:  "warehouse",
			Reference:       "main",
			ProjectDir:      "dbt",
			Backend:         config.GitBackendGoGit,
			Target:          config.TierProd,
			OutputDir:       "target",
			StorageRoot:     storageRoot,
			TokenKey:        config.DefaultTokenKey,
			ClientSecretKey: config.DefaultClientSecretKey,
			BuildSteps:      steps.Default(),
			DocsStep:        steps.DocsStep(),
		},
		fetcher:  &fakeFetcher{},
		invoker:  &fakeInvoker{},
		journal:  eventstore.NewJournal(store, nil),
		redactor: redact.New(),
		logs:     &bytes.Buffer{},
		storage:  storageRoot,
	}
}

func (h *harness) orchestrator(t *testing.T, provider secrets.Provider, fetcher git.Fetcher) *Orchestrator {
	t.Helper()
	if provider == nil {
		provider = secrets.NewStaticProvider(map[string]string{
			config.DefaultTokenKey:        testToken,
			config.DefaultClientSecretKey: testClientSecret,
		})
	}
	if fetcher == nil {
		fetcher = h.fetcher
	}
	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(h.plan,
		WithSecretProvider(provider),
		WithFetcher(fetcher),
		WithInvoker(h.invoker),
		WithWorkspace(workspace.NewManager(t.TempDir(), h.plan.RunID).WithLogger(logger)),
		WithRedactor(h.redactor),
		WithJournal(h.journal),
		WithLogger(logger),
	)
}

func TestRunAllStepsSucceed(t *testing.T) {
	h := newHarness(t)
	summary, err := h.orchestrator(t, nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Steps, 4)
	for i, name := range []string{"deps", "debug", "build", "docs"} {
		assert.Equal(t, name, summary.Steps[i].Name)
		assert.True(t, summary.Steps[i].Success)
	}
	assert.Equal(t, "main", summary.Reference)
	assert.Equal(t, "prod", summary.TargetTier)

	require.Len(t, h.fetcher.requests, 1)
	req := h.fetcher.requests[0]
	assert.Equal(t, testToken, req.Token)
	assert.Equal(t, "main", req.Reference)
	assert.Equal(t, "warehouse", filepath.Base(req.Destination))

	workDir := filepath.Join(req.Destination, "dbt")
	for _, call := range h.invoker.calls {
		assert.Equal(t, workDir, call.Dir, "every step runs in the project directory")
		assert.Contains(t, call.Env, "DBT_TARGET=prod")
		assert.Contains(t, call.Env, "DBT_CLIENT_SECRET="+testClientSecret)
	}

	for _, name := range []string{publish.PublishedDocs, publish.ManifestFile, publish.RunResultsFile, report.SummaryFile} {
		assert.FileExists(t, filepath.Join(h.storage, name))
	}
	data, err := os.ReadFile(filepath.Join(h.storage, report.SummaryFile))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, report.OutcomeSuccess, doc["outcome"])

	assert.NoDirExists(t, filepath.Dir(req.Destination), "ephemeral workspace is removed")
	assert.NotContains(t, h.logs.String(), testToken)
	assert.NotContains(t, h.logs.String(), testClientSecret)
	assert.Equal(t, testToken, h.redactor.String(testToken), "secrets are forgotten after the run")

	rec, ok := h.journal.Projection().Run("run-123")
	require.True(t, ok)
	assert.Equal(t, "success", rec.Status)
	assert.Len(t, rec.Steps, 4)
	assert.Contains(t, rec.Artifacts, publish.PublishedDocs)
}

func TestRunStepFailureAbortsAndKeepsPartialSummary(t *testing.T) {
	h := newHarness(t)
	h.invoker.failStep = "debug"

	summary, err := h.orchestrator(t, nil, nil).Run(context.Background())
	require.Error(t, err)

	var stepErr *steps.StepExecutionError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "debug", stepErr.Step)
	assert.NotContains(t, ferrors.GetDetails(err)["stderr"], testClientSecret)

	require.Len(t, summary.Steps, 2)
	assert.True(t, summary.Steps[0].Success)
	assert.False(t, summary.Steps[1].Success)
	assert.Equal(t, []string{"deps", "debug"}, h.invoker.names())
	assert.NoDirExists(t, h.storage, "nothing is published after a failed step")

	rec, ok := h.journal.Projection().Run("run-123")
	require.True(t, ok)
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "build", rec.ErrorCategory)
}

func TestRunCloneFailureIsRedacted(t *testing.T) {
	h := newHarness(t)
	h.plan.RepositoryURL = "https://127.0.0.1:1/acme/warehouse.git"
	fetcher := git.NewGoGitFetcher(h.redactor, 0)

	summary, err := h.orchestrator(t, nil, fetcher).Run(context.Background())
	require.Error(t, err)

	var cloneErr *git.CloneError
	require.ErrorAs(t, err, &cloneErr)
	assert.Equal(t, 128, cloneErr.Outcome.ExitCode)
	assert.NotContains(t, cloneErr.Outcome.Stderr, testToken)
	assert.NotContains(t, err.Error(), testToken)
	details := ferrors.GetDetails(err)
	assert.Equal(t, 128, details["exit_code"])

	assert.Empty(t, summary.Steps)
	assert.Empty(t, h.invoker.calls, "no step runs after a failed fetch")
	assert.NotContains(t, h.logs.String(), testToken)
}

func TestRunMissingDocsArtifact(t *testing.T) {
	h := newHarness(t)
	h.invoker.skipDocs = true

	summary, err := h.orchestrator(t, nil, nil).Run(context.Background())
	require.Error(t, err)

	var missing *publish.MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, publish.StaticDocsFile, filepath.Base(missing.ExpectedPath))
	assert.Equal(t, "target", filepath.Base(filepath.Dir(missing.ExpectedPath)))

	require.Len(t, summary.Steps, 4)
	assert.True(t, summary.Succeeded(), "every step reported success")
	assert.NoFileExists(t, filepath.Join(h.storage, publish.PublishedDocs))
	assert.NoFileExists(t, filepath.Join(h.storage, report.SummaryFile))
}

func TestRunMissingSecretStopsBeforeFetch(t *testing.T) {
	h := newHarness(t)
	provider := secrets.NewStaticProvider(map[string]string{config.DefaultTokenKey: testToken})

	_, err := h.orchestrator(t, provider, nil).Run(context.Background())
	require.Error(t, err)

	var missing *secrets.MissingSecretError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, config.DefaultClientSecretKey, missing.Key)
	assert.Empty(t, h.fetcher.requests)
}

func TestRunMissingProjectDirectory(t *testing.T) {
	h := newHarness(t)
	h.plan.ProjectDir = "transform"

	_, err := h.orchestrator(t, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, ferrors.GetCategory(err))
	assert.Empty(t, h.invoker.calls)
}

func TestRunRequiresCollaborators(t *testing.T) {
	h := newHarness(t)
	summary, err := New(h.plan).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryInternal, ferrors.GetCategory(err))
	assert.NotNil(t, summary)
}

func TestRunUsesConfiguredStepSequence(t *testing.T) {
	h := newHarness(t)
	h.plan.BuildSteps = []steps.Step{{Name: "seed", Args: []string{"seed"}}, {Name: "build", Args: []string{"build", "--select", "tag:nightly"}}}

	summary, err := h.orchestrator(t, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"seed", "build", "docs"}, h.invoker.names())
	assert.Len(t, summary.Steps, 3)
	assert.True(t, slices.Equal([]string{"build", "--select", "tag:nightly"}, h.invoker.calls[1].Args))
}
