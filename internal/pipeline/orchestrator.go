package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/dbtrunner/internal/eventstore"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/git"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/metrics"
	"git.home.luguber.info/inful/dbtrunner/internal/publish"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
	"git.home.luguber.info/inful/dbtrunner/internal/report"
	"git.home.luguber.info/inful/dbtrunner/internal/secrets"
	"git.home.luguber.info/inful/dbtrunner/internal/steps"
	"git.home.luguber.info/inful/dbtrunner/internal/storage"
	"git.home.luguber.info/inful/dbtrunner/internal/workspace"
)

// Orchestrator wires the fetcher, step runner and publisher for one RunPlan.
type Orchestrator struct {
	plan      *RunPlan
	secrets   secrets.Provider
	fetcher   git.Fetcher
	invoker   steps.Invoker
	workspace *workspace.Manager
	publisher *publish.Publisher
	redactor  *redact.Redactor
	recorder  metrics.Recorder
	journal   *eventstore.Journal
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithWorkspace(m *workspace.Manager) Option    { return func(o *Orchestrator) { o.workspace = m } }
func WithPublisher(p *publish.Publisher) Option    { return func(o *Orchestrator) { o.publisher = p } }
func WithRedactor(r *redact.Redactor) Option       { return func(o *Orchestrator) { o.redactor = r } }
func WithRecorder(r metrics.Recorder) Option       { return func(o *Orchestrator) { o.recorder = r } }
func WithJournal(j *eventstore.Journal) Option     { return func(o *Orchestrator) { o.journal = j } }
func WithLogger(l *slog.Logger) Option             { return func(o *Orchestrator) { o.logger = l } }
func WithFetcher(f git.Fetcher) Option             { return func(o *Orchestrator) { o.fetcher = f } }
func WithInvoker(i steps.Invoker) Option           { return func(o *Orchestrator) { o.invoker = i } }
func WithSecretProvider(p secrets.Provider) Option { return func(o *Orchestrator) { o.secrets = p } }

// New returns an orchestrator for plan. Fetcher, invoker and secret provider are
// required; the rest default to an ephemeral workspace, a filesystem publisher, a
// fresh redactor and no-op metrics.
func New(plan *RunPlan, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		plan:     plan,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.redactor == nil {
		o.redactor = redact.New()
	}
	if o.workspace == nil {
		o.workspace = workspace.NewManager("", plan.RunID)
	}
	if o.publisher == nil {
		o.publisher = publish.New(publish.WithRecorder(o.recorder), publish.WithLogger(o.logger))
	}
	return o
}

// Plan returns the plan the orchestrator runs.
func (o *Orchestrator) Plan() *RunPlan { return o.plan }

// credentials holds the secret values for the lifetime of one Run.
type credentials struct {
	token        string
	clientSecret string
}

func (c *credentials) clear() {
	c.token = ""
	c.clientSecret = ""
}

// Run executes the plan. The returned summary is never nil; on error it holds the
// steps attempted before the abort.
func (o *Orchestrator) Run(ctx context.Context) (*steps.RunSummary, error) {
	p := o.plan
	started := time.Now()
	summary := steps.NewRunSummary(p.RunID, p.Reference, string(p.Target))
	log := o.logger.With(logfields.RunID(p.RunID))

	if err := o.validate(); err != nil {
		return summary, err
	}

	creds := &credentials{}
	defer func() {
		creds.clear()
		o.redactor.Forget()
	}()

	err := o.run(ctx, log, summary, creds)
	o.finish(ctx, log, summary, err, time.Since(started))
	return summary, err
}

func (o *Orchestrator) validate() error {
	switch {
	case o.fetcher == nil:
		return errors.InternalError("orchestrator has no fetcher").Build()
	case o.invoker == nil:
		return errors.InternalError("orchestrator has no build tool invoker").Build()
	case o.secrets == nil:
		return errors.InternalError("orchestrator has no secret provider").Build()
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, summary *steps.RunSummary, creds *credentials) error {
	p := o.plan

	if err := o.acquireSecrets(ctx, creds); err != nil {
		return err
	}
	o.redactor.Add(creds.token, creds.clientSecret)

	log.Info("Starting run",
		logfields.Repository(p.RepositoryName),
		logfields.Reference(p.Reference),
		logfields.Target(string(p.Target)),
		logfields.Backend(string(p.Backend)))
	ev, evErr := eventstore.NewRunStarted(p.RunID, eventstore.RunStartedMeta{
		Repository: p.RepositoryName,
		Reference:  p.Reference,
		TargetTier: string(p.Target),
		Backend:    string(p.Backend),
	})
	o.journal.Record(ctx, ev, evErr)

	if err := o.workspace.Create(); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create workspace").Build()
	}
	defer func() {
		if err := o.workspace.Cleanup(); err != nil {
			log.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}()

	cloneDir, err := o.fetch(ctx, log, creds.token)
	if err != nil {
		return err
	}

	workDir := p.WorkDir(cloneDir)
	if info, statErr := os.Stat(workDir); statErr != nil || !info.IsDir() {
		return errors.ConfigError("project directory not found in repository").
			WithContext("project_dir", p.ProjectDir).
			WithContext("path", workDir).
			Build()
	}

	runner := steps.NewRunner(workDir, o.invoker,
		steps.WithEnv(steps.BuildEnv(p.Target, creds.clientSecret, p.ProfilesDir)),
		steps.WithRecorder(o.recorder),
		steps.WithRedactor(o.redactor),
		steps.WithObserver(multiObserver{
			steps.LogObserver{Logger: log},
			&journalObserver{ctx: ctx, journal: o.journal, runID: p.RunID},
		}),
	)
	if err := runner.RunInto(ctx, summary, p.BuildSteps); err != nil {
		return err
	}
	if err := runner.RunInto(ctx, summary, []steps.Step{p.DocsStep}); err != nil {
		return err
	}

	return o.publish(ctx, log, summary, p.BuildOutputDir(runner.WorkDir()))
}

func (o *Orchestrator) acquireSecrets(ctx context.Context, creds *credentials) error {
	token, err := o.secrets.GetSecret(ctx, o.plan.TokenKey)
	if err != nil {
		return err
	}
	clientSecret, err := o.secrets.GetSecret(ctx, o.plan.ClientSecretKey)
	if err != nil {
		return err
	}
	creds.token = token
	creds.clientSecret = clientSecret
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, log *slog.Logger, token string) (string, error) {
	p := o.plan
	cloneDir, err := o.workspace.CloneDir(p.RepositoryName)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "invalid clone directory").Build()
	}

	t0 := time.Now()
	_, err = o.fetcher.Fetch(ctx, git.Request{
		URL:         p.RepositoryURL,
		Token:       token,
		Reference:   p.Reference,
		Destination: cloneDir,
	})
	d := time.Since(t0)
	o.recorder.ObserveFetchDuration(string(p.Backend), d, metrics.ResultFor(err == nil))
	if err != nil {
		return "", err
	}

	commit, headErr := git.ReadRepoHead(cloneDir)
	if headErr != nil {
		log.Debug("Could not read cloned HEAD", logfields.Error(headErr))
	}
	ev, evErr := eventstore.NewRepositoryFetched(p.RunID, commit, cloneDir, d)
	o.journal.Record(ctx, ev, evErr)
	return cloneDir, nil
}

func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, summary *steps.RunSummary, outputDir string) error {
	p := o.plan
	if _, err := o.publisher.PublishDocs(ctx, outputDir, p.StorageRoot); err != nil {
		return err
	}
	files := []string{publish.PublishedDocs}

	state, err := o.publisher.PublishState(ctx, outputDir, p.StorageRoot)
	if err != nil {
		log.Warn("Build state was not persisted", logfields.Error(err))
	}
	files = append(files, state...)

	store, err := storage.NewFSStore(p.StorageRoot)
	if err != nil {
		log.Warn("Run summary was not persisted", logfields.Error(err))
	} else if _, err := report.Persist(ctx, store, summary, nil); err != nil {
		log.Warn("Run summary was not persisted", logfields.Error(err))
	} else {
		files = append(files, report.SummaryFile)
	}

	ev, evErr := eventstore.NewArtifactsPublished(p.RunID, p.StorageRoot, files)
	o.journal.Record(ctx, ev, evErr)
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, summary *steps.RunSummary, runErr error, d time.Duration) {
	o.recorder.ObserveRunDuration(d)
	if runErr == nil {
		o.recorder.IncRunOutcome(metrics.OutcomeSuccess)
		log.Info("Run completed", logfields.DurationMS(float64(d.Milliseconds())), slog.Int("steps", len(summary.Steps)))
		ev, evErr := eventstore.NewRunCompleted(o.plan.RunID, len(summary.Steps), d)
		o.journal.Record(ctx, ev, evErr)
		return
	}

	o.recorder.IncRunOutcome(metrics.OutcomeFailed)
	category := string(errors.GetCategory(runErr))
	msg := o.redactor.String(runErr.Error())
	log.Error("Run failed",
		slog.String("category", category),
		logfields.DurationMS(float64(d.Milliseconds())),
		slog.String("error", msg))
	ev, evErr := eventstore.NewRunFailed(o.plan.RunID, category, msg, len(summary.Steps), d)
	o.journal.Record(context.WithoutCancel(ctx), ev, evErr)
}

type multiObserver []steps.Observer

func (m multiObserver) OnStepStart(step steps.Step, index, total int) {
	for _, o := range m {
		o.OnStepStart(step, index, total)
	}
}

func (m multiObserver) OnStepComplete(result steps.StepResult, d time.Duration) {
	for _, o := range m {
		o.OnStepComplete(result, d)
	}
}

// journalObserver records every attempted step.
type journalObserver struct {
	ctx     context.Context
	journal *eventstore.Journal
	runID   string
}

func (j *journalObserver) OnStepStart(steps.Step, int, int) {}

func (j *journalObserver) OnStepComplete(result steps.StepResult, d time.Duration) {
	exitCode := 0
	if diag := result.Diagnostic.ToPointer(); diag != nil {
		exitCode = diag.ExitCode
	}
	ev, err := eventstore.NewStepCompleted(j.runID, result.Name, result.Success, exitCode, d)
	j.journal.Record(j.ctx, ev, err)
}
