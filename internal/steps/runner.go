package steps

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/metrics"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// StepExecutionError is returned by RunPipeline for the first failing step.
type StepExecutionError struct {
	Step       string
	Args       []string
	Diagnostic foundation.Option[Diagnostic]
}

func (e *StepExecutionError) Error() string {
	d := e.Diagnostic.UnwrapOr(Diagnostic{})
	msg := fmt.Sprintf("step %q (%s) failed with exit code %d", e.Step, strings.Join(e.Args, " "), d.ExitCode)
	if d.Error != "" {
		msg += ": " + d.Error
	}
	return msg
}

func (e *StepExecutionError) Category() errors.ErrorCategory { return errors.CategoryBuild }

func (e *StepExecutionError) Details() map[string]any {
	details := map[string]any{
		"kind": "step",
		"step": e.Step,
		"args": slices.Clone(e.Args),
	}
	if e.Diagnostic.IsSome() {
		d := e.Diagnostic.Unwrap()
		details["exit_code"] = d.ExitCode
		details["stdout"] = d.Stdout
		details["stderr"] = d.Stderr
		if d.Truncated {
			details["truncated"] = true
		}
		if d.Error != "" {
			details["error"] = d.Error
		}
	}
	return details
}

// Observer receives step lifecycle callbacks.
type Observer interface {
	OnStepStart(step Step, index, total int)
	OnStepComplete(result StepResult, d time.Duration)
}

// LogObserver logs step progress with slog.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o LogObserver) OnStepStart(step Step, index, total int) {
	o.logger().Info("Running step",
		logfields.Step(step.Name),
		logfields.Args(step.Args),
		slog.String("position", fmt.Sprintf("%d/%d", index+1, total)))
}

func (o LogObserver) OnStepComplete(result StepResult, d time.Duration) {
	attrs := []any{
		logfields.Step(result.Name),
		logfields.Success(result.Success),
		logfields.DurationMS(float64(d.Milliseconds())),
	}
	if result.Success {
		o.logger().Info("Step completed", attrs...)
		return
	}
	if diag := result.Diagnostic.ToPointer(); diag != nil {
		attrs = append(attrs, logfields.ExitCode(diag.ExitCode))
	}
	o.logger().Error("Step failed", attrs...)
}

// Runner executes steps against a single working directory fixed at construction.
type Runner struct {
	workdir  string
	invoker  Invoker
	env      []string
	recorder metrics.Recorder
	observer Observer
	redactor *redact.Redactor
}

// Option configures a Runner.
type Option func(*Runner)

func WithEnv(env []string) Option              { return func(r *Runner) { r.env = slices.Clone(env) } }
func WithRecorder(rec metrics.Recorder) Option { return func(r *Runner) { r.recorder = rec } }
func WithObserver(obs Observer) Option         { return func(r *Runner) { r.observer = obs } }
func WithRedactor(red *redact.Redactor) Option { return func(r *Runner) { r.redactor = red } }

func NewRunner(workdir string, invoker Invoker, opts ...Option) *Runner {
	r := &Runner{
		workdir:  workdir,
		invoker:  invoker,
		recorder: metrics.NoopRecorder{},
		observer: LogObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WorkDir is the directory every step runs in.
func (r *Runner) WorkDir() string { return r.workdir }

// RunStep invokes the build tool once and returns the redacted result.
func (r *Runner) RunStep(ctx context.Context, step Step) StepResult {
	t0 := time.Now()
	out := r.invoker.Invoke(ctx, Invocation{Dir: r.workdir, Args: slices.Clone(step.Args), Env: r.env})
	dur := time.Since(t0)

	diag := Diagnostic{
		ExitCode:  out.ExitCode,
		Stdout:    r.redactor.String(out.Stdout),
		Stderr:    r.redactor.String(out.Stderr),
		Truncated: out.Truncated,
		Duration:  dur,
	}
	if out.Err != nil {
		diag.Error = r.redactor.String(out.Err.Error())
	}
	result := StepResult{Name: step.Name, Success: out.Success(), Diagnostic: foundation.Some(diag)}

	r.recorder.ObserveStepDuration(step.Name, dur)
	r.recorder.IncStepResult(step.Name, metrics.ResultFor(result.Success))
	r.observer.OnStepComplete(result, dur)
	return result
}

// RunPipeline runs steps in order into a new summary. On the first failure the partial
// summary is returned together with a *StepExecutionError; later steps never run.
func (r *Runner) RunPipeline(ctx context.Context, steps []Step) (*RunSummary, error) {
	summary := NewRunSummary("", "", "")
	err := r.RunInto(ctx, summary, steps)
	return summary, err
}

// RunInto is RunPipeline appending to an existing summary.
func (r *Runner) RunInto(ctx context.Context, summary *RunSummary, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "run canceled before step").
				WithContext("step", step.Name).
				Build()
		}
		r.observer.OnStepStart(step, i, len(steps))

		result := r.RunStep(ctx, step)
		summary.Record(result)
		if !result.Success {
			return &StepExecutionError{
				Step:       step.Name,
				Args:       slices.Clone(step.Args),
				Diagnostic: result.Diagnostic,
			}
		}
	}
	return nil
}
