package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"os/exec"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// EnvClientSecret carries the service principal secret to the publishing command.
const EnvClientSecret = "DEPLOY_CLIENT_SECRET"

// Publisher publishes every in-scope item of a repository directory to a workspace.
type Publisher interface {
	PublishAll(ctx context.Context, opts Options) error
}

// Request is the JSON document written to the publishing command's stdin. The client
// secret is never part of it.
type Request struct {
	WorkspaceID         string   `json:"workspace_id,omitempty"`
	WorkspaceName       string   `json:"workspace_name,omitempty"`
	Environment         string   `json:"environment,omitempty"`
	RepositoryDirectory string   `json:"repository_directory,omitempty"`
	ItemTypeInScope     []string `json:"item_type_in_scope,omitempty"`
	FeatureFlags        []string `json:"feature_flags"`
	ClientID            string   `json:"client_id,omitempty"`
	TenantID            string   `json:"tenant_id,omitempty"`
}

// NewRequest converts validated options to the wire document.
func NewRequest(opts Options) Request {
	req := Request{
		WorkspaceID:         opts.WorkspaceID,
		WorkspaceName:       opts.WorkspaceName,
		Environment:         opts.Environment,
		RepositoryDirectory: opts.RepositoryDirectory,
		ItemTypeInScope:     opts.ItemTypesInScope,
		FeatureFlags:        opts.FeatureFlags,
	}
	if sp := opts.Credential.ToPointer(); sp != nil {
		req.ClientID = sp.ClientID
		req.TenantID = sp.TenantID
	}
	return req
}

// CommandPublisher runs an external command that talks to the workspace API.
type CommandPublisher struct {
	Command   []string
	Output    io.Writer
	TailBytes int
	Redactor  *redact.Redactor
	Logger    *slog.Logger

	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewCommandPublisher(command []string, output io.Writer, r *redact.Redactor) *CommandPublisher {
	return &CommandPublisher{
		Command:     command,
		Output:      output,
		TailBytes:   64 * 1024,
		Redactor:    r,
		Logger:      slog.Default(),
		execCommand: exec.CommandContext,
	}
}

func (p *CommandPublisher) PublishAll(ctx context.Context, opts Options) error {
	if len(p.Command) == 0 {
		return errors.ConfigError("deploy command is not configured").Build()
	}
	red := p.Redactor
	if red == nil {
		red = redact.New()
	}
	if sp := opts.Credential.ToPointer(); sp != nil {
		red.Add(sp.ClientSecret)
	}

	body, err := json.Marshal(NewRequest(opts))
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode deploy request").Build()
	}

	build := p.execCommand
	if build == nil {
		build = exec.CommandContext
	}
	cmd := build(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Env = cmd.Environ()
	if sp := opts.Credential.ToPointer(); sp != nil {
		cmd.Env = append(cmd.Env, EnvClientSecret+"="+sp.ClientSecret)
	}

	stderr := redact.NewTail(p.TailBytes)
	var mirror *redact.LineWriter
	if p.Output != nil {
		mirror = redact.NewLineWriter(p.Output, red)
		cmd.Stdout = mirror
		cmd.Stderr = io.MultiWriter(stderr, mirror)
	} else {
		cmd.Stderr = stderr
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Publishing workspace items",
		slog.String("workspace", workspaceLabel(opts)),
		logfields.Environment(opts.Environment),
		slog.Any("item_types", opts.ItemTypesInScope),
		slog.Any("feature_flags", opts.FeatureFlags),
		slog.Bool("service_principal", opts.Credential.IsSome()))

	runErr := cmd.Run()
	if mirror != nil {
		_ = mirror.Flush()
	}
	if runErr == nil {
		logger.Info("Workspace items published", slog.String("workspace", workspaceLabel(opts)))
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return errors.NewError(errors.CategoryDeploy, "publishing command failed").
		WithCause(stderrors.New(red.String(runErr.Error()))).
		WithContext("exit_code", exitCode).
		WithContext("stderr", red.String(stderr.String())).
		WithContext("workspace", workspaceLabel(opts)).
		Build()
}

func workspaceLabel(opts Options) string {
	if opts.WorkspaceID != "" {
		return opts.WorkspaceID
	}
	return opts.WorkspaceName
}

// Deploy validates a and, only when valid, hands the options to pub.
func Deploy(ctx context.Context, pub Publisher, a Args, restricted []string) (Options, error) {
	opts, err := Build(a, restricted)
	if err != nil {
		return Options{}, err
	}
	return opts, pub.PublishAll(ctx, opts)
}
