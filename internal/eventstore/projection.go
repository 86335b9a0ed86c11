package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	runStatusRunning = "running"
	runStatusSuccess = "success"
	runStatusFailed  = "failed"
)

// RunRecord is a read model summarizing one run.
type RunRecord struct {
	RunID         string        `json:"run_id"`
	Status        string        `json:"status"`
	Repository    string        `json:"repository,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	TargetTier    string        `json:"target_tier,omitempty"`
	Commit        string        `json:"commit,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Steps         []StepRecord  `json:"steps"`
	Artifacts     []string      `json:"artifacts,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// StepRecord is one attempted step of a run.
type StepRecord struct {
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
}

// RunHistoryProjection folds journal events into per-run records.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunRecord
	history  []*RunRecord // finished runs, newest first
	maxSize  int
	lastSync time.Time
}

func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunRecord),
		history: make([]*RunRecord, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every event in the store.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunRecord)
	p.history = make([]*RunRecord, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}
	rec, exists := p.runs[runID]
	if !exists {
		rec = &RunRecord{RunID: runID, Status: runStatusRunning, StartedAt: event.Timestamp(), Steps: []StepRecord{}}
		p.runs[runID] = rec
	}

	switch event.Type() {
	case TypeRunStarted:
		var meta RunStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			rec.Repository = meta.Repository
			rec.Reference = meta.Reference
			rec.TargetTier = meta.TargetTier
		}
		rec.StartedAt = event.Timestamp()

	case TypeRepositoryFetched:
		var payload struct {
			Commit string `json:"commit"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			rec.Commit = payload.Commit
		}

	case TypeStepCompleted:
		var payload struct {
			Step     string `json:"step"`
			Success  bool   `json:"success"`
			ExitCode int    `json:"exit_code"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			rec.Steps = append(rec.Steps, StepRecord{Name: payload.Step, Success: payload.Success, ExitCode: payload.ExitCode})
		}

	case TypeArtifactsPublished:
		var payload struct {
			Files []string `json:"files"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			rec.Artifacts = append(rec.Artifacts, payload.Files...)
		}

	case TypeRunCompleted:
		p.finishLocked(rec, event.Timestamp(), runStatusSuccess)

	case TypeRunFailed:
		var payload struct {
			Category string `json:"category"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			rec.ErrorCategory = payload.Category
			rec.ErrorMessage = payload.Error
		}
		p.finishLocked(rec, event.Timestamp(), runStatusFailed)
	}
}

func (p *RunHistoryProjection) finishLocked(rec *RunRecord, at time.Time, status string) {
	rec.CompletedAt = &at
	rec.Duration = at.Sub(rec.StartedAt)
	rec.Status = status

	for _, h := range p.history {
		if h.RunID == rec.RunID {
			return
		}
	}
	p.history = append([]*RunRecord{rec}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops finished runs that fell out of the bounded history.
func (p *RunHistoryProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.RunID] = struct{}{}
	}
	for id, rec := range p.runs {
		if rec.Status == runStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// History returns finished runs, newest first.
func (p *RunHistoryProjection) History() []RunRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]RunRecord, len(p.history))
	for i, h := range p.history {
		out[i] = copyRecord(h)
	}
	return out
}

// Run returns a copy of the record for runID.
func (p *RunHistoryProjection) Run(runID string) (RunRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return copyRecord(rec), true
}

// LastSyncTime returns when Rebuild last ran.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

func copyRecord(r *RunRecord) RunRecord {
	cp := *r
	cp.Steps = append([]StepRecord(nil), r.Steps...)
	cp.Artifacts = append([]string(nil), r.Artifacts...)
	return cp
}
