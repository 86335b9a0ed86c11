package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os/exec"

	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// CLIFetcher shells out to the git binary. Its exit code is reported as-is.
type CLIFetcher struct {
	binary    string
	redactor  *redact.Redactor
	tailBytes int

	// execCommand builds the command; tests replace it.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewCLIFetcher(binary string, r *redact.Redactor, tailBytes int) *CLIFetcher {
	if binary == "" {
		binary = "git"
	}
	return &CLIFetcher{binary: binary, redactor: r, tailBytes: tailBytes, execCommand: exec.CommandContext}
}

func (f *CLIFetcher) Fetch(ctx context.Context, req Request) (FetchOutcome, error) {
	r := newRedactor(f.redactor, req.Token)
	safeURL := r.String(redact.URL(req.URL))

	if err := prepareDestination(req.Destination); err != nil {
		return FetchOutcome{ExitCode: 1}, err
	}

	args := []string{"clone", "--depth", "1", "--single-branch"}
	if req.Reference != "" {
		args = append(args, "--branch", req.Reference)
	}
	args = append(args, WithCredential(req.URL, req.Token), req.Destination)

	slog.Debug("Cloning repository with git CLI", logfields.URL(safeURL), logfields.Reference(req.Reference), logfields.Path(req.Destination))

	stdout := redact.NewTail(f.tailBytes)
	stderr := redact.NewTail(f.tailBytes)
	cmd := f.execCommand(ctx, f.binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	err := cmd.Run()
	outcome := FetchOutcome{
		Stdout: r.String(stdout.String()),
		Stderr: r.String(stderr.String()),
	}
	if err == nil {
		slog.Info("Repository cloned", logfields.Reference(req.Reference), logfields.Path(req.Destination))
		return outcome, nil
	}

	outcome.ExitCode = exitCodeOf(err)
	if outcome.Stderr == "" {
		outcome.Stderr = r.String(fmt.Sprintf("fatal: %v\n", err))
	}
	return outcome, &CloneError{
		URL:       safeURL,
		Reference: req.Reference,
		Reason:    classifyText(outcome.Stderr),
		Outcome:   outcome,
		Err:       err,
	}
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	// Could not start, or killed by a signal.
	return exitFatal
}
