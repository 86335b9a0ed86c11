package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/dbtrunner/internal/cli"
	"git.home.luguber.info/inful/dbtrunner/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	path := root.Config
	switch {
	case i.Output != "":
		path = filepath.Join(i.Output, config.DefaultFileName)
	case path == "":
		path = config.DefaultFileName
	}

	fmt.Printf("Writing configuration to %s\n", path)
	res := g.Executor.ExecuteInit(ctx, cli.InitRequest{ConfigPath: path, Force: i.Force})
	if res.IsErr() {
		fmt.Println("Initialization failed")
		return res.UnwrapErr()
	}
	fmt.Println("initialized successfully")
	return nil
}
