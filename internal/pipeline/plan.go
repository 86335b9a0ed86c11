package pipeline

import (
	"path/filepath"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/steps"
)

// RunPlan is an immutable execution plan derived from config. Everything the
// orchestrator needs to know before touching the network is resolved here.
type RunPlan struct {
	RunID           string
	RepositoryURL   string
	RepositoryName  string
	Reference       string
	ProjectDir      string
	Backend         config.GitBackend
	Target          config.TargetTier
	ProfilesDir     string
	OutputDir       string
	StorageRoot     string
	TokenKey        string
	ClientSecretKey string
	BuildSteps      []steps.Step
	DocsStep        steps.Step
}

// WorkDir is the build tool project directory inside a clone.
func (p *RunPlan) WorkDir(cloneDir string) string {
	return filepath.Join(cloneDir, p.ProjectDir)
}

// BuildOutputDir is where the build tool writes its artifacts.
func (p *RunPlan) BuildOutputDir(workDir string) string {
	if filepath.IsAbs(p.OutputDir) {
		return p.OutputDir
	}
	return filepath.Join(workDir, p.OutputDir)
}

// RunPlanBuilder constructs a RunPlan from config plus per-invocation overrides.
type RunPlanBuilder struct {
	cfg  *config.Config
	plan RunPlan
}

func NewRunPlanBuilder(cfg *config.Config) *RunPlanBuilder {
	return &RunPlanBuilder{cfg: cfg}
}

// WithRunID fixes the run id. A fresh UUID is used otherwise.
func (b *RunPlanBuilder) WithRunID(id string) *RunPlanBuilder {
	b.plan.RunID = id
	return b
}

// WithReference overrides the configured branch or tag.
func (b *RunPlanBuilder) WithReference(ref string) *RunPlanBuilder {
	b.plan.Reference = ref
	return b
}

// WithTarget overrides the configured target tier.
func (b *RunPlanBuilder) WithTarget(tier config.TargetTier) *RunPlanBuilder {
	b.plan.Target = tier
	return b
}

// Build validates the repository settings and returns the plan.
func (b *RunPlanBuilder) Build() (*RunPlan, error) {
	if err := config.RequireRepository(b.cfg); err != nil {
		return nil, err
	}
	c := b.cfg
	p := b.plan
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	if p.Reference == "" {
		p.Reference = c.Repository.Reference
	}
	if p.Target == "" {
		p.Target = c.Build.Target
	}
	p.Target = config.NormalizeTargetTier(string(p.Target))

	p.RepositoryURL = c.Repository.URL
	p.RepositoryName = c.Repository.Name
	if p.RepositoryName == "" {
		p.RepositoryName = config.RepositoryNameFromURL(c.Repository.URL)
	}
	p.ProjectDir = c.Repository.ProjectDir
	p.Backend = c.Repository.Backend
	p.ProfilesDir = c.Build.ProfilesDir
	p.OutputDir = c.Build.OutputDir
	p.StorageRoot = c.Storage.Root
	p.TokenKey = c.Secrets.TokenKey
	p.ClientSecretKey = c.Secrets.ClientSecretKey
	p.BuildSteps, p.DocsStep = steps.FromConfig(c.Build)
	return &p, nil
}
