package commands

import (
	"context"

	"git.home.luguber.info/inful/dbtrunner/internal/cli"
	"git.home.luguber.info/inful/dbtrunner/internal/deploy"
)

// DeployCmd implements the 'deploy' command. The credential flags are all-or-nothing;
// without them the publisher falls back to the ambient identity.
type DeployCmd struct {
	WorkspaceID         string `name:"workspace-id" help:"Target workspace id (exclusive with --workspace-name)"`
	WorkspaceName       string `name:"workspace-name" help:"Target workspace name (exclusive with --workspace-id)"`
	Environment         string `short:"e" required:"" help:"Target environment, e.g. DEV, STG or PROD"`
	RepositoryDirectory string `name:"repository-directory" required:"" help:"Directory holding the item definitions"`
	ItemsInScope        string `name:"items-in-scope" help:"Comma separated item types to publish"`
	ClientID            string `name:"client-id" help:"Service principal client id"`
	ClientSecret        string `name:"client-secret" env:"DBTRUNNER_DEPLOY_CLIENT_SECRET" help:"Service principal secret"`
	TenantID            string `name:"tenant-id" help:"Service principal tenant id"`
}

func (d *DeployCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	res := g.Executor.ExecuteDeploy(ctx, cli.DeployRequest{
		ConfigPath: root.Config,
		Args: deploy.Args{
			WorkspaceID:         d.WorkspaceID,
			WorkspaceName:       d.WorkspaceName,
			Environment:         d.Environment,
			RepositoryDirectory: d.RepositoryDirectory,
			ItemsInScope:        d.ItemsInScope,
			ClientID:            d.ClientID,
			ClientSecret:        d.ClientSecret,
			TenantID:            d.TenantID,
		},
		Verbose: root.Verbose,
		JSONLog: root.JSONLog,
	})
	if res.IsErr() {
		return res.UnwrapErr()
	}
	return nil
}
