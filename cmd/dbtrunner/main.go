package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dbtrunner/cmd/dbtrunner/commands"
	"git.home.luguber.info/inful/dbtrunner/internal/cli"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var root commands.CLI
	parser, err := kong.New(&root,
		kong.Name("dbtrunner"),
		kong.Description("Build a dbt project from a fresh clone and publish its docs and state."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	global := &commands.Global{Executor: cli.NewCommandExecutor(os.Stdout, os.Stderr)}
	if err := kctx.Run(global, &root); err != nil {
		return errors.NewCLIErrorAdapter(root.Verbose, slog.Default()).Report(os.Stderr, err)
	}
	return 0
}
