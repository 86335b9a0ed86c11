package metrics

import "time"

// ResultLabel enumerates step and fetch result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// ResultFor maps a success flag onto a label.
func ResultFor(ok bool) ResultLabel {
	if ok {
		return ResultSuccess
	}
	return ResultFailed
}

// OutcomeLabel enumerates final run outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines observability hooks for a run. Implementations must be safe to
// call on the zero value.
type Recorder interface {
	ObserveStepDuration(step string, d time.Duration)
	IncStepResult(step string, result ResultLabel)
	ObserveFetchDuration(backend string, d time.Duration, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
	IncArtifactPublished(name string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, time.Duration)               {}
func (NoopRecorder) IncStepResult(string, ResultLabel)                       {}
func (NoopRecorder) ObserveFetchDuration(string, time.Duration, ResultLabel) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                        {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                              {}
func (NoopRecorder) IncArtifactPublished(string)                             {}
