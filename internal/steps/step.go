// Package steps runs the build tool through a fixed, ordered sequence of steps.
//
// The Runner is fail-fast: every attempted step is appended to the RunSummary before its
// success is judged, and the first failure aborts the sequence with a
// *StepExecutionError. There is no retry and no continue-on-error mode.
package steps

import (
	"slices"
	"time"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation"
)

// Step is one invocation of the build tool.
type Step struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

func (s Step) clone() Step {
	return Step{Name: s.Name, Args: slices.Clone(s.Args)}
}

// Diagnostic is the redacted detail captured for a step.
type Diagnostic struct {
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"-"`
}

// StepResult is created right after a step executes and never mutated.
type StepResult struct {
	Name       string
	Success    bool
	Diagnostic foundation.Option[Diagnostic]
}

// RunSummary accumulates the results of one run in execution order.
type RunSummary struct {
	RunID      string
	Reference  string
	TargetTier string
	Steps      []StepResult
}

func NewRunSummary(runID, reference, targetTier string) *RunSummary {
	return &RunSummary{RunID: runID, Reference: reference, TargetTier: targetTier, Steps: []StepResult{}}
}

// Record appends a result. It is the only way the summary grows.
func (s *RunSummary) Record(r StepResult) {
	s.Steps = append(s.Steps, r)
}

// Succeeded reports whether every recorded step succeeded.
func (s *RunSummary) Succeeded() bool {
	for _, r := range s.Steps {
		if !r.Success {
			return false
		}
	}
	return true
}

// LastFailure returns the failing result, which is always the last entry when present.
func (s *RunSummary) LastFailure() (StepResult, bool) {
	if len(s.Steps) == 0 {
		return StepResult{}, false
	}
	last := s.Steps[len(s.Steps)-1]
	return last, !last.Success
}

// Pipeline is a fluent builder for the fixed step sequence.
type Pipeline struct{ steps []Step }

func NewPipeline() *Pipeline { return &Pipeline{steps: make([]Step, 0, 4)} }

// Add appends a step unconditionally.
func (p *Pipeline) Add(name string, args ...string) *Pipeline {
	p.steps = append(p.steps, Step{Name: name, Args: args}.clone())
	return p
}

// AddIf appends a step only if cond is true.
func (p *Pipeline) AddIf(cond bool, name string, args ...string) *Pipeline {
	if cond {
		p.Add(name, args...)
	}
	return p
}

// Build returns a copy of the steps so later builder calls cannot change a started run.
func (p *Pipeline) Build() []Step {
	out := make([]Step, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.clone()
	}
	return out
}

// Default is the build sequence: install packages, check the connection, build.
func Default() []Step {
	return NewPipeline().
		Add("deps", "deps").
		Add("debug", "debug").
		Add("build", "build").
		Build()
}

// DocsStep generates the single-file documentation site.
func DocsStep() Step {
	return Step{Name: "docs", Args: []string{"docs", "generate", "--static"}}
}

// FromConfig turns configured steps into a sequence, falling back to Default when none
// are configured.
func FromConfig(cfg config.BuildConfig) (build []Step, docs Step) {
	docs = DocsStep()
	if cfg.Docs != nil {
		docs = Step{Name: cfg.Docs.Name, Args: cfg.Docs.Args}.clone()
		if docs.Name == "" {
			docs.Name = "docs"
		}
	}
	if len(cfg.Steps) == 0 {
		return Default(), docs
	}
	p := NewPipeline()
	for _, s := range cfg.Steps {
		p.Add(s.Name, s.Args...)
	}
	return p.Build(), docs
}
