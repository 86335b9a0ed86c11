package steps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// fakeInvoker fails the step at failAt (1-indexed, 0 = never) and records every call.
type fakeInvoker struct {
	failAt int
	calls  []Invocation
	stderr string
}

func (f *fakeInvoker) Invoke(_ context.Context, inv Invocation) Outcome {
	f.calls = append(f.calls, inv)
	if len(f.calls) == f.failAt {
		return Outcome{ExitCode: 2, Stderr: f.stderr}
	}
	return Outcome{Stdout: "OK " + inv.Args[0]}
}

type recordingObserver struct {
	started   []string
	completed []StepResult
}

func (o *recordingObserver) OnStepStart(step Step, _, _ int) { o.started = append(o.started, step.Name) }
func (o *recordingObserver) OnStepComplete(r StepResult, _ time.Duration) {
	o.completed = append(o.completed, r)
}

func TestRunPipelineAllSucceed(t *testing.T) {
	inv := &fakeInvoker{}
	r := NewRunner("/work/repo/dbt", inv)

	summary, err := r.RunPipeline(context.Background(), Default())
	require.NoError(t, err)
	require.Len(t, summary.Steps, 3)
	for i, name := range []string{"deps", "debug", "build"} {
		assert.Equal(t, name, summary.Steps[i].Name)
		assert.True(t, summary.Steps[i].Success)
	}
	assert.True(t, summary.Succeeded())
	for _, call := range inv.calls {
		assert.Equal(t, "/work/repo/dbt", call.Dir)
	}
}

func TestRunPipelineFailFast(t *testing.T) {
	sequence := []Step{
		{Name: "one", Args: []string{"one"}},
		{Name: "two", Args: []string{"two"}},
		{Name: "three", Args: []string{"three"}},
		{Name: "four", Args: []string{"four"}},
	}
	for failAt := 1; failAt <= len(sequence); failAt++ {
		t.Run(fmt.Sprintf("fail_at_%d", failAt), func(t *testing.T) {
			inv := &fakeInvoker{failAt: failAt}
			obs := &recordingObserver{}
			r := NewRunner(t.TempDir(), inv, WithObserver(obs))

			summary, err := r.RunPipeline(context.Background(), sequence)
			require.Error(t, err)

			var stepErr *StepExecutionError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, sequence[failAt-1].Name, stepErr.Step)
			assert.Equal(t, sequence[failAt-1].Args, stepErr.Args)
			assert.Equal(t, 2, stepErr.Diagnostic.Unwrap().ExitCode)

			assert.Len(t, inv.calls, failAt, "later steps must not run")
			require.Len(t, summary.Steps, failAt)
			for i := 0; i < failAt-1; i++ {
				assert.True(t, summary.Steps[i].Success)
				assert.Equal(t, sequence[i].Name, summary.Steps[i].Name)
			}
			last, failed := summary.LastFailure()
			assert.True(t, failed)
			assert.Equal(t, sequence[failAt-1].Name, last.Name)
			assert.Len(t, obs.started, failAt)
			assert.Len(t, obs.completed, failAt)
		})
	}
}

func TestStepExecutionErrorIsRedactedAndClassified(t *testing.T) {
	inv := &fakeInvoker{failAt: 1, stderr: "Runtime Error: login failed for client secret hunter2-secret"}
	r := NewRunner(t.TempDir(), inv, WithRedactor(redact.New("hunter2-secret")))

	_, err := r.RunPipeline(context.Background(), []Step{{Name: "build", Args: []string{"build", "--select", "tag:nightly"}}})
	require.Error(t, err)

	assert.Equal(t, errors.CategoryBuild, errors.GetCategory(err))
	details := errors.GetDetails(err)
	assert.Equal(t, "build", details["step"])
	assert.Equal(t, []string{"build", "--select", "tag:nightly"}, details["args"])
	assert.Equal(t, 2, details["exit_code"])
	assert.NotContains(t, details["stderr"], "hunter2-secret")
	assert.Contains(t, err.Error(), `step "build" (build --select tag:nightly) failed with exit code 2`)
}

func TestRunIntoAppendsToExistingSummary(t *testing.T) {
	inv := &fakeInvoker{}
	r := NewRunner(t.TempDir(), inv)
	summary := NewRunSummary("run-1", "main", "prod")

	require.NoError(t, r.RunInto(context.Background(), summary, Default()))
	require.NoError(t, r.RunInto(context.Background(), summary, []Step{DocsStep()}))

	require.Len(t, summary.Steps, 4)
	assert.Equal(t, "docs", summary.Steps[3].Name)
	assert.Equal(t, []string{"docs", "generate", "--static"}, inv.calls[3].Args)
}

func TestRunIntoStopsWhenContextCanceled(t *testing.T) {
	inv := &fakeInvoker{}
	r := NewRunner(t.TempDir(), inv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.RunPipeline(ctx, Default())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryRuntime, errors.GetCategory(err))
	assert.Empty(t, summary.Steps)
	assert.Empty(t, inv.calls)
}

func TestRunnerPassesEnvironment(t *testing.T) {
	inv := &fakeInvoker{}
	env := []string{"DBT_TARGET=prod"}
	r := NewRunner(t.TempDir(), inv, WithEnv(env))
	env[0] = "DBT_TARGET=mutated"

	r.RunStep(context.Background(), DocsStep())
	assert.Equal(t, []string{"DBT_TARGET=prod"}, inv.calls[0].Env)
}

func TestExecInvoker(t *testing.T) {
	var log bytes.Buffer
	e := NewExecInvoker("dbt", 0, &log, redact.New("s3cret-value"))
	e.execCommand = func(ctx context.Context, _ string, args ...string) *exec.Cmd {
		script := `echo "running $1 in $(pwd) target=$DBT_TARGET secret=$DBT_CLIENT_SECRET"; echo "warn" >&2; exit 3`
		return exec.CommandContext(ctx, "sh", append([]string{"-c", script, "dbt"}, args...)...)
	}

	dir := t.TempDir()
	out := e.Invoke(context.Background(), Invocation{
		Dir:  dir,
		Args: []string{"build"},
		Env:  BuildEnv("prod", "s3cret-value", ""),
	})

	assert.Equal(t, 3, out.ExitCode)
	assert.NoError(t, out.Err)
	assert.False(t, out.Success())
	assert.Contains(t, out.Stdout, "running build in "+dir)
	assert.Contains(t, out.Stdout, "target=prod")
	assert.Equal(t, "warn\n", out.Stderr)
	assert.NotContains(t, log.String(), "s3cret-value")
	assert.Contains(t, log.String(), "secret=***")
}

func TestExecInvokerMissingBinary(t *testing.T) {
	e := NewExecInvoker("/nonexistent/dbt", 0, nil, nil)
	out := e.Invoke(context.Background(), Invocation{Dir: t.TempDir(), Args: []string{"deps"}})
	assert.Error(t, out.Err)
	assert.Equal(t, -1, out.ExitCode)
	assert.False(t, out.Success())
}

func TestBuildEnv(t *testing.T) {
	assert.Equal(t, []string{"DBT_TARGET=staging"}, BuildEnv("", "", ""))
	assert.Equal(t, []string{"DBT_TARGET=prod", "DBT_CLIENT_SECRET=x", "DBT_PROFILES_DIR=/p"}, BuildEnv("prod", "x", "/p"))
}
