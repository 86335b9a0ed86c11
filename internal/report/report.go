// Package report serializes a RunSummary into the deterministic JSON an external
// orchestrator scrapes from the log.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/steps"
	"git.home.luguber.info/inful/dbtrunner/internal/storage"
)

// Log markers preceding the JSON blobs.
const (
	SummaryMarker = "FINAL_STEP_SUMMARY:"
	DetailsMarker = "DETAILS:"
	SummaryFile   = "run-summary.json"
)

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Finalize renders summary as indented JSON. Every object is built from a map so keys
// come out sorted. runErr marks the run failed even when no step failed (a fetch or
// publish error).
func Finalize(summary *steps.RunSummary, runErr error) ([]byte, error) {
	if summary == nil {
		summary = steps.NewRunSummary("", "", "")
	}
	outcome := OutcomeSuccess
	if runErr != nil || !summary.Succeeded() {
		outcome = OutcomeFailed
	}

	stepList := make([]map[string]any, 0, len(summary.Steps))
	for _, r := range summary.Steps {
		stepList = append(stepList, stepEntry(r))
	}
	doc := map[string]any{
		"reference":   summary.Reference,
		"target_tier": summary.TargetTier,
		"outcome":     outcome,
		"steps":       stepList,
	}
	if summary.RunID != "" {
		doc["run_id"] = summary.RunID
	}
	if runErr != nil {
		doc["error"] = map[string]any{
			"category": string(errors.GetCategory(runErr)),
			"message":  runErr.Error(),
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func stepEntry(r steps.StepResult) map[string]any {
	entry := map[string]any{
		"name":    r.Name,
		"success": r.Success,
	}
	if r.Diagnostic.IsNone() {
		return entry
	}
	d := r.Diagnostic.Unwrap()
	diag := map[string]any{
		"exit_code":   d.ExitCode,
		"duration_ms": d.Duration.Milliseconds(),
	}
	if !r.Success {
		diag["stdout"] = d.Stdout
		diag["stderr"] = d.Stderr
		if d.Truncated {
			diag["truncated"] = true
		}
		if d.Error != "" {
			diag["error"] = d.Error
		}
	}
	entry["diagnostic"] = diag
	return entry
}

// Reporter writes the marker lines to a log stream.
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter { return &Reporter{w: w} }

// Emit writes the summary marker line followed by the finalized JSON.
func (r *Reporter) Emit(summary *steps.RunSummary, runErr error) error {
	data, err := Finalize(summary, runErr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to serialize run summary").Build()
	}
	_, err = fmt.Fprintf(r.w, "%s\n%s\n", SummaryMarker, data)
	return err
}

// EmitDetails writes the diagnostic blob of err. Nothing is written for a nil error.
func (r *Reporter) EmitDetails(err error) error {
	if err == nil {
		return nil
	}
	details := maps.Clone(errors.GetDetails(err))
	if _, ok := details["category"]; !ok {
		details["category"] = string(errors.GetCategory(err))
	}
	data, mErr := json.MarshalIndent(details, "", "  ")
	if mErr != nil {
		return errors.WrapError(mErr, errors.CategoryInternal, "failed to serialize error details").Build()
	}
	_, wErr := fmt.Fprintf(r.w, "%s\n%s\n", DetailsMarker, data)
	return wErr
}

// Persist stores the finalized summary as run-summary.json in store.
func Persist(ctx context.Context, store storage.Store, summary *steps.RunSummary, runErr error) (*storage.Object, error) {
	data, err := Finalize(summary, runErr)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to serialize run summary").Build()
	}
	obj, err := store.Put(ctx, SummaryFile, bytes.NewReader(append(data, '\n')))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to persist run summary").
			WithContext("location", store.Location()).
			Build()
	}
	return obj, nil
}
