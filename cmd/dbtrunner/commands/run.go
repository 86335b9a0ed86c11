package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/dbtrunner/internal/cli"
	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	RunID     string `name:"run-id" help:"Identifier recorded in logs, journal and summary (default: random UUID)"`
	Reference string `short:"r" help:"Branch or tag to fetch (overrides repository.reference)"`
	Target    string `short:"t" help:"Target tier: prod or staging (overrides build.target)"`
}

func (r *RunCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	res := g.Executor.ExecuteRun(ctx, cli.RunRequest{
		ConfigPath: root.Config,
		RunID:      r.RunID,
		Reference:  r.Reference,
		Target:     r.Target,
		Verbose:    root.Verbose,
		JSONLog:    root.JSONLog,
	})
	resp, err := res.ToTuple()
	if err != nil {
		return err
	}
	slog.Info("Run finished",
		logfields.RunID(resp.RunID),
		logfields.DurationMS(float64(resp.Duration.Milliseconds())))
	return nil
}
