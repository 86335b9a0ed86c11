package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// Event type names as stored in the journal.
const (
	TypeRunStarted         = "RunStarted"
	TypeRepositoryFetched  = "RepositoryFetched"
	TypeStepCompleted      = "StepCompleted"
	TypeArtifactsPublished = "ArtifactsPublished"
	TypeRunCompleted       = "RunCompleted"
	TypeRunFailed          = "RunFailed"
)

// RunStartedMeta describes what a run was asked to do.
type RunStartedMeta struct {
	Repository string `json:"repository"`
	Reference  string `json:"reference"`
	TargetTier string `json:"target_tier"`
	Backend    string `json:"backend"`
}

// RunStarted is emitted once the run has an id and its secrets.
type RunStarted struct {
	BaseEvent
	Meta RunStartedMeta
}

func newBase(runID, eventType string, payload []byte) BaseEvent {
	return BaseEvent{
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

func marshalPayload(runID, eventType string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.JournalError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return payload, nil
}

func NewRunStarted(runID string, meta RunStartedMeta) (*RunStarted, error) {
	payload, err := marshalPayload(runID, TypeRunStarted, meta)
	if err != nil {
		return nil, err
	}
	return &RunStarted{BaseEvent: newBase(runID, TypeRunStarted, payload), Meta: meta}, nil
}

// RepositoryFetched is emitted after a successful shallow clone.
type RepositoryFetched struct {
	BaseEvent
	Commit   string
	Path     string
	Duration time.Duration
}

func NewRepositoryFetched(runID, commit, path string, d time.Duration) (*RepositoryFetched, error) {
	payload, err := marshalPayload(runID, TypeRepositoryFetched, map[string]any{
		"commit":      commit,
		"path":        path,
		"duration_ms": d.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &RepositoryFetched{
		BaseEvent: newBase(runID, TypeRepositoryFetched, payload),
		Commit:    commit,
		Path:      path,
		Duration:  d,
	}, nil
}

// StepCompleted is emitted for every attempted step, successful or not.
type StepCompleted struct {
	BaseEvent
	Step     string
	Success  bool
	ExitCode int
	Duration time.Duration
}

func NewStepCompleted(runID, step string, success bool, exitCode int, d time.Duration) (*StepCompleted, error) {
	payload, err := marshalPayload(runID, TypeStepCompleted, map[string]any{
		"step":        step,
		"success":     success,
		"exit_code":   exitCode,
		"duration_ms": d.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &StepCompleted{
		BaseEvent: newBase(runID, TypeStepCompleted, payload),
		Step:      step,
		Success:   success,
		ExitCode:  exitCode,
		Duration:  d,
	}, nil
}

// ArtifactsPublished lists the files copied to durable storage.
type ArtifactsPublished struct {
	BaseEvent
	Location string
	Files    []string
}

func NewArtifactsPublished(runID, location string, files []string) (*ArtifactsPublished, error) {
	payload, err := marshalPayload(runID, TypeArtifactsPublished, map[string]any{
		"location": location,
		"files":    files,
	})
	if err != nil {
		return nil, err
	}
	return &ArtifactsPublished{
		BaseEvent: newBase(runID, TypeArtifactsPublished, payload),
		Location:  location,
		Files:     files,
	}, nil
}

// RunCompleted closes a successful run.
type RunCompleted struct {
	BaseEvent
	StepCount int
	Duration  time.Duration
}

func NewRunCompleted(runID string, stepCount int, d time.Duration) (*RunCompleted, error) {
	payload, err := marshalPayload(runID, TypeRunCompleted, map[string]any{
		"step_count":  stepCount,
		"duration_ms": d.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &RunCompleted{BaseEvent: newBase(runID, TypeRunCompleted, payload), StepCount: stepCount, Duration: d}, nil
}

// RunFailed closes an aborted run. Message must already be redacted.
type RunFailed struct {
	BaseEvent
	Category  string
	Message   string
	StepCount int
	Duration  time.Duration
}

func NewRunFailed(runID, category, message string, stepCount int, d time.Duration) (*RunFailed, error) {
	payload, err := marshalPayload(runID, TypeRunFailed, map[string]any{
		"category":    category,
		"error":       message,
		"step_count":  stepCount,
		"duration_ms": d.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &RunFailed{
		BaseEvent: newBase(runID, TypeRunFailed, payload),
		Category:  category,
		Message:   message,
		StepCount: stepCount,
		Duration:  d,
	}, nil
}
