package steps

import (
	"context"
	stderrors "errors"
	"io"
	"os/exec"

	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// Environment variables handed to the build tool.
const (
	EnvTarget       = "DBT_TARGET"
	EnvClientSecret = "DBT_CLIENT_SECRET"
	EnvProfilesDir  = "DBT_PROFILES_DIR"
)

// Invocation is a single call of the build tool.
type Invocation struct {
	Dir  string
	Args []string
	Env  []string
}

// Outcome is what the build tool reported. Output is raw; the Runner redacts it.
type Outcome struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Err       error
}

// Success reports a zero exit without a start error.
func (o Outcome) Success() bool { return o.Err == nil && o.ExitCode == 0 }

// Invoker runs the build tool.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) Outcome
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, inv Invocation) Outcome

func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) Outcome { return f(ctx, inv) }

// ExecInvoker runs the build tool binary as a subprocess. Output is kept up to TailBytes
// per stream and mirrored, redacted, to Log when set.
type ExecInvoker struct {
	Binary    string
	TailBytes int
	Log       io.Writer
	Redactor  *redact.Redactor

	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewExecInvoker(binary string, tailBytes int, log io.Writer, r *redact.Redactor) *ExecInvoker {
	return &ExecInvoker{Binary: binary, TailBytes: tailBytes, Log: log, Redactor: r, execCommand: exec.CommandContext}
}

func (e *ExecInvoker) Invoke(ctx context.Context, inv Invocation) Outcome {
	build := e.execCommand
	if build == nil {
		build = exec.CommandContext
	}
	cmd := build(ctx, e.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(cmd.Environ(), inv.Env...)

	stdout := redact.NewTail(e.TailBytes)
	stderr := redact.NewTail(e.TailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if e.Log != nil {
		mirror := redact.NewLineWriter(e.Log, e.Redactor)
		defer func() { _ = mirror.Flush() }()
		cmd.Stdout = io.MultiWriter(stdout, mirror)
		cmd.Stderr = io.MultiWriter(stderr, mirror)
	}

	err := cmd.Run()
	out := Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
			out.Err = err
		}
	}
	return out
}

// BuildEnv returns the variables the build tool reads its target and credential from.
func BuildEnv(tier config.TargetTier, clientSecret, profilesDir string) []string {
	target := string(config.TierStaging)
	if tier.IsProd() {
		target = string(config.TierProd)
	}
	env := []string{EnvTarget + "=" + target}
	if clientSecret != "" {
		env = append(env, EnvClientSecret+"="+clientSecret)
	}
	if profilesDir != "" {
		env = append(env, EnvProfilesDir+"="+profilesDir)
	}
	return env
}
