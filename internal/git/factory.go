package git

import (
	"git.home.luguber.info/inful/dbtrunner/internal/config"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// New returns the fetcher for the configured backend.
func New(cfg config.RepositoryConfig, r *redact.Redactor, tailBytes int) Fetcher {
	if cfg.Backend == config.GitBackendCLI {
		return NewCLIFetcher(cfg.GitBinary, r, tailBytes)
	}
	return NewGoGitFetcher(r, tailBytes)
}
