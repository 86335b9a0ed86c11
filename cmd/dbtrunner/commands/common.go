package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dbtrunner/internal/cli"
	"git.home.luguber.info/inful/dbtrunner/internal/config"
)

// Global carries the collaborators shared by every subcommand.
type Global struct {
	Executor cli.CommandExecutor
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: ./dbtrunner.yaml, then the XDG config dir)" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	JSONLog bool             `name:"json-log" help:"Write logs as JSON"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run     RunCmd     `cmd:"" help:"Fetch the repository, run the build steps and publish the docs"`
	Deploy  DeployCmd  `cmd:"" help:"Publish workspace items to a target environment"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	History HistoryCmd `cmd:"" help:"Show recent runs from the run journal"`
}

// AfterApply runs after flag parsing; setup logging once. The configuration file may
// raise the level again when it is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose || config.SystemDebug() {
		level = slog.LevelDebug
	}
	format := config.LogFormatText
	if c.JSONLog {
		format = config.LogFormatJSON
	}
	slog.SetDefault(cli.NewLogger(os.Stderr, level, format))
	return nil
}
