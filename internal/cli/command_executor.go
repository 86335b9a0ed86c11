package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/deploy"
	"git.home.luguber.info/inful/dbtrunner/internal/eventstore"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/git"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/metrics"
	"git.home.luguber.info/inful/dbtrunner/internal/pipeline"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
	"git.home.luguber.info/inful/dbtrunner/internal/report"
	"git.home.luguber.info/inful/dbtrunner/internal/secrets"
	"git.home.luguber.info/inful/dbtrunner/internal/steps"
	"git.home.luguber.info/inful/dbtrunner/internal/workspace"
)

// CommandExecutor provides a service-oriented interface for CLI command execution
type CommandExecutor interface {
	ExecuteRun(ctx context.Context, req RunRequest) foundation.Result[RunResponse, error]
	ExecuteDeploy(ctx context.Context, req DeployRequest) foundation.Result[DeployResponse, error]
	ExecuteInit(ctx context.Context, req InitRequest) foundation.Result[InitResponse, error]
	ExecuteHistory(ctx context.Context, req HistoryRequest) foundation.Result[HistoryResponse, error]
}

// Request/Response types for each command

type RunRequest struct {
	ConfigPath string
	RunID      string
	Reference  string
	Target     string
	Verbose    bool
	JSONLog    bool
}

type RunResponse struct {
	RunID    string
	Summary  *steps.RunSummary
	Duration time.Duration
}

type DeployRequest struct {
	ConfigPath string
	Args       deploy.Args
	Verbose    bool
	JSONLog    bool
}

type DeployResponse struct {
	Options deploy.Options
}

type InitRequest struct {
	ConfigPath string
	Force      bool
}

type InitResponse struct {
	ConfigPath string
	Created    bool
}

type HistoryRequest struct {
	ConfigPath string
	Limit      int
	Verbose    bool
	JSONLog    bool
}

type HistoryResponse struct {
	Runs []eventstore.RunRecord
}

// Factories for the collaborators that touch the outside world.
type (
	FetcherFactory   func(cfg config.RepositoryConfig, r *redact.Redactor, tailBytes int) git.Fetcher
	InvokerFactory   func(cfg config.BuildConfig, log io.Writer, r *redact.Redactor) steps.Invoker
	SecretsFactory   func(ctx context.Context, cfg config.SecretsConfig) (secrets.Provider, func() error, error)
	PublisherFactory func(cfg config.DeployConfig, out io.Writer, r *redact.Redactor) deploy.Publisher
)

// DefaultCommandExecutor implements the CommandExecutor interface
type DefaultCommandExecutor struct {
	stdout io.Writer
	stderr io.Writer

	newFetcher   FetcherFactory
	newInvoker   InvokerFactory
	newSecrets   SecretsFactory
	newPublisher PublisherFactory
}

// NewCommandExecutor writes reports to stdout and mirrors tool output to stderr.
func NewCommandExecutor(stdout, stderr io.Writer) *DefaultCommandExecutor {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &DefaultCommandExecutor{
		stdout:     stdout,
		stderr:     stderr,
		newFetcher: git.New,
		newInvoker: func(cfg config.BuildConfig, log io.Writer, r *redact.Redactor) steps.Invoker {
			return steps.NewExecInvoker(cfg.Binary, cfg.OutputTailBytes, log, r)
		},
		newSecrets: secrets.New,
		newPublisher: func(cfg config.DeployConfig, out io.Writer, r *redact.Redactor) deploy.Publisher {
			return deploy.NewCommandPublisher(cfg.Command, out, r)
		},
	}
}

// WithFetcherFactory allows injecting a custom fetcher (for testing).
func (e *DefaultCommandExecutor) WithFetcherFactory(f FetcherFactory) *DefaultCommandExecutor {
	e.newFetcher = f
	return e
}

// WithInvokerFactory allows injecting a custom build tool invoker (for testing).
func (e *DefaultCommandExecutor) WithInvokerFactory(f InvokerFactory) *DefaultCommandExecutor {
	e.newInvoker = f
	return e
}

// WithSecretsFactory allows injecting a custom secret provider (for testing).
func (e *DefaultCommandExecutor) WithSecretsFactory(f SecretsFactory) *DefaultCommandExecutor {
	e.newSecrets = f
	return e
}

// WithPublisherFactory allows injecting a custom deploy publisher (for testing).
func (e *DefaultCommandExecutor) WithPublisherFactory(f PublisherFactory) *DefaultCommandExecutor {
	e.newPublisher = f
	return e
}

// loadConfig resolves the config file and applies its logging section. The verbose and
// jsonLog flags take precedence over the configured level and format.
func (e *DefaultCommandExecutor) loadConfig(explicit string, verbose, jsonLog bool) (*config.Config, error) {
	path, err := config.ResolvePath(explicit)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	format := cfg.Logging.Format
	if jsonLog {
		format = config.LogFormatJSON
	}
	slog.SetDefault(NewLogger(e.stderr, level, format))
	return cfg, nil
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Command execution implementations

// ExecuteRun runs the full fetch, build and publish sequence. The final summary is
// always written to stdout, preceded by the error details when the run aborted.
func (e *DefaultCommandExecutor) ExecuteRun(ctx context.Context, req RunRequest) foundation.Result[RunResponse, error] {
	started := time.Now()
	reporter := report.NewReporter(e.stdout)

	resp, err := e.run(ctx, req)
	if resp.Summary == nil {
		resp.Summary = steps.NewRunSummary(req.RunID, req.Reference, req.Target)
	}
	resp.Duration = time.Since(started)

	if err != nil {
		if emitErr := reporter.EmitDetails(err); emitErr != nil {
			slog.Warn("Failed to write error details", logfields.Error(emitErr))
		}
	}
	if emitErr := reporter.Emit(resp.Summary, err); emitErr != nil && err == nil {
		err = errors.WrapError(emitErr, errors.CategoryRuntime, "failed to write run summary").Build()
	}
	if err != nil {
		return foundation.Err[RunResponse](err)
	}
	return foundation.Ok[RunResponse, error](resp)
}

func (e *DefaultCommandExecutor) run(ctx context.Context, req RunRequest) (RunResponse, error) {
	cfg, err := e.loadConfig(req.ConfigPath, req.Verbose, req.JSONLog)
	if err != nil {
		return RunResponse{}, err
	}

	builder := pipeline.NewRunPlanBuilder(cfg).WithRunID(req.RunID).WithReference(req.Reference)
	if req.Target != "" {
		builder = builder.WithTarget(config.NormalizeTargetTier(req.Target))
	}
	plan, err := builder.Build()
	if err != nil {
		return RunResponse{}, err
	}
	log := slog.Default().With(logfields.RunID(plan.RunID))

	red := redact.New()
	if detectErr := red.EnableDetection(); detectErr != nil {
		log.Warn("Secret pattern detection unavailable", logfields.Error(detectErr))
	}

	provider, closeSecrets, err := e.newSecrets(ctx, cfg.Secrets)
	if err != nil {
		return RunResponse{RunID: plan.RunID}, err
	}
	defer func() {
		if closeErr := closeSecrets(); closeErr != nil {
			log.Warn("Failed to close secret provider", logfields.Error(closeErr))
		}
	}()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	journal := openJournal(cfg.Journal, log)
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			log.Warn("Failed to close run journal", logfields.Error(closeErr))
		}
	}()

	orch := pipeline.New(plan,
		pipeline.WithSecretProvider(provider),
		pipeline.WithFetcher(e.newFetcher(cfg.Repository, red, cfg.Build.OutputTailBytes)),
		pipeline.WithInvoker(e.newInvoker(cfg.Build, e.stderr, red)),
		pipeline.WithWorkspace(workspace.FromConfig(cfg.Workspace, plan.RunID).WithLogger(log)),
		pipeline.WithRedactor(red),
		pipeline.WithRecorder(recorder),
		pipeline.WithJournal(journal),
		pipeline.WithLogger(slog.Default()),
	)
	summary, runErr := orch.Run(ctx)

	if prom != nil && cfg.Metrics.Textfile != "" {
		if err := prom.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("Failed to write metrics textfile", logfields.Path(cfg.Metrics.Textfile), logfields.Error(err))
		}
	}
	return RunResponse{RunID: plan.RunID, Summary: summary}, runErr
}

// openJournal returns nil when journaling is disabled or the store cannot be opened.
func openJournal(cfg config.JournalConfig, log *slog.Logger) *eventstore.Journal {
	if !cfg.Enabled {
		return nil
	}
	store, err := eventstore.NewSQLiteStore(cfg.Path)
	if err != nil {
		log.Warn("Run journal disabled", logfields.Path(cfg.Path), logfields.Error(err))
		return nil
	}
	return eventstore.NewJournal(store, log)
}

// ExecuteDeploy validates the deployment arguments and publishes every item in scope.
// No publisher is constructed for an invalid invocation.
func (e *DefaultCommandExecutor) ExecuteDeploy(ctx context.Context, req DeployRequest) foundation.Result[DeployResponse, error] {
	cfg, err := e.loadConfig(req.ConfigPath, req.Verbose, req.JSONLog)
	if err != nil {
		return foundation.Err[DeployResponse](err)
	}
	if _, err := deploy.Build(req.Args, cfg.Deploy.RestrictedEnvironments); err != nil {
		return foundation.Err[DeployResponse](err)
	}

	red := redact.New(req.Args.ClientSecret)
	pub := e.newPublisher(cfg.Deploy, e.stderr, red)
	opts, err := deploy.Deploy(ctx, pub, req.Args, cfg.Deploy.RestrictedEnvironments)
	if err != nil {
		return foundation.Err[DeployResponse](err)
	}
	slog.Info("Deployment finished",
		logfields.Workspace(opts.WorkspaceID+opts.WorkspaceName),
		logfields.Environment(opts.Environment))
	return foundation.Ok[DeployResponse, error](DeployResponse{Options: opts})
}

func (e *DefaultCommandExecutor) ExecuteInit(_ context.Context, req InitRequest) foundation.Result[InitResponse, error] {
	slog.Info("Initializing configuration", logfields.Path(req.ConfigPath), slog.Bool("force", req.Force))

	err := config.Init(req.ConfigPath, req.Force)
	if err != nil {
		return foundation.Err[InitResponse](err)
	}

	return foundation.Ok[InitResponse, error](InitResponse{
		ConfigPath: req.ConfigPath,
		Created:    true,
	})
}

// ExecuteHistory replays the run journal and returns the newest runs first.
func (e *DefaultCommandExecutor) ExecuteHistory(ctx context.Context, req HistoryRequest) foundation.Result[HistoryResponse, error] {
	cfg, err := e.loadConfig(req.ConfigPath, req.Verbose, req.JSONLog)
	if err != nil {
		return foundation.Err[HistoryResponse](err)
	}
	if !cfg.Journal.Enabled {
		return foundation.Err[HistoryResponse, error](errors.ConfigError("run journal is not enabled").
			WithContext("hint", "set journal.enabled: true").
			Build())
	}

	store, err := eventstore.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		return foundation.Err[HistoryResponse](err)
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewRunHistoryProjection(store, req.Limit)
	if err := projection.Rebuild(ctx); err != nil {
		return foundation.Err[HistoryResponse](err)
	}
	return foundation.Ok[HistoryResponse, error](HistoryResponse{Runs: projection.History()})
}
