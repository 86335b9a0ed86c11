package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("deps", 150*time.Millisecond)
	pr.IncStepResult("deps", ResultSuccess)
	pr.IncStepResult("build", ResultFailed)
	pr.ObserveFetchDuration("gogit", time.Second, ResultSuccess)
	pr.ObserveRunDuration(2 * time.Second)
	pr.IncRunOutcome(OutcomeFailed)
	pr.IncArtifactPublished("dbt_docs.html")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"dbtrunner_step_duration_seconds",
		"dbtrunner_step_results_total",
		"dbtrunner_fetch_duration_seconds",
		"dbtrunner_run_duration_seconds",
		"dbtrunner_run_outcomes_total",
		"dbtrunner_artifacts_published_total",
		"dbtrunner_last_run_timestamp_seconds",
	} {
		assert.True(t, names[want], want)
	}
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveStepDuration("x", time.Second)
		pr.IncStepResult("x", ResultSuccess)
		pr.IncRunOutcome(OutcomeSuccess)
	})
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome(OutcomeSuccess)

	path := filepath.Join(t.TempDir(), "metrics", "dbtrunner.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dbtrunner_run_outcomes_total{outcome="success"} 1`)
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncStepResult("deps", ResultFor(true))
	assert.Equal(t, ResultFailed, ResultFor(false))
}
