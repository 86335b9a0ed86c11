package eventstore

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordRun(t *testing.T, j *Journal, runID string, fail bool) {
	t.Helper()
	ctx := t.Context()

	started, err := NewRunStarted(runID, RunStartedMeta{Repository: "warehouse", Reference: "main", TargetTier: "prod", Backend: "gogit"})
	j.Record(ctx, started, err)
	fetched, err := NewRepositoryFetched(runID, "abc1234", "/work/warehouse", time.Second)
	j.Record(ctx, fetched, err)
	step, err := NewStepCompleted(runID, "deps", true, 0, time.Second)
	j.Record(ctx, step, err)

	if fail {
		step, err = NewStepCompleted(runID, "build", false, 1, time.Second)
		j.Record(ctx, step, err)
		failed, err := NewRunFailed(runID, "build", `step "build" failed`, 2, 3*time.Second)
		j.Record(ctx, failed, err)
		return
	}
	published, err := NewArtifactsPublished(runID, "/lakehouse", []string{"dbt_docs.html", "manifest.json"})
	j.Record(ctx, published, err)
	done, err := NewRunCompleted(runID, 1, 3*time.Second)
	j.Record(ctx, done, err)
}

func TestJournalProjection(t *testing.T) {
	j := NewJournal(newMemoryStore(t), nil)
	recordRun(t, j, "run-ok", false)
	recordRun(t, j, "run-bad", true)

	history := j.Projection().History()
	require.Len(t, history, 2)
	assert.Equal(t, "run-bad", history[0].RunID)
	assert.Equal(t, runStatusFailed, history[0].Status)
	assert.Equal(t, "build", history[0].ErrorCategory)
	require.Len(t, history[0].Steps, 2)
	assert.False(t, history[0].Steps[1].Success)
	assert.Equal(t, 1, history[0].Steps[1].ExitCode)

	ok, found := j.Projection().Run("run-ok")
	require.True(t, found)
	assert.Equal(t, runStatusSuccess, ok.Status)
	assert.Equal(t, "abc1234", ok.Commit)
	assert.Equal(t, "main", ok.Reference)
	assert.Equal(t, []string{"dbt_docs.html", "manifest.json"}, ok.Artifacts)
	assert.NotNil(t, ok.CompletedAt)
}

func TestProjectionRebuildFromStore(t *testing.T) {
	store := newMemoryStore(t)
	recordRun(t, NewJournal(store, nil), "run-1", false)
	recordRun(t, NewJournal(store, nil), "run-2", true)

	p := NewRunHistoryProjection(store, 1)
	require.NoError(t, p.Rebuild(t.Context()))
	assert.False(t, p.LastSyncTime().IsZero())

	history := p.History()
	require.Len(t, history, 1, "history is bounded")
	assert.Equal(t, "run-2", history[0].RunID)
	_, found := p.Run("run-1")
	assert.False(t, found, "runs outside the bounded history are pruned")
}

func TestProjectionReturnsCopies(t *testing.T) {
	j := NewJournal(newMemoryStore(t), nil)
	recordRun(t, j, "run-1", false)

	rec, _ := j.Projection().Run("run-1")
	rec.Steps[0].Name = "mutated"
	again, _ := j.Projection().Run("run-1")
	assert.Equal(t, "deps", again.Steps[0].Name)
}

func TestJournalLogsAppendFailures(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var logs bytes.Buffer
	j := NewJournal(store, slog.New(slog.NewTextHandler(&logs, nil)))
	ev, err := NewRunCompleted("run-1", 0, time.Second)
	j.Record(t.Context(), ev, err)

	assert.Contains(t, logs.String(), "Failed to append journal event")
	_, found := j.Projection().Run("run-1")
	assert.False(t, found)
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	ev, err := NewRunCompleted("run-1", 0, time.Second)
	j.Record(t.Context(), ev, err)
	assert.Nil(t, j.Projection())
	assert.NoError(t, j.Close())
}
