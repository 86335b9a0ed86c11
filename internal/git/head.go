package git

import (
	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// ReadRepoHead returns the HEAD commit hash of the repository at repoPath. Both backends
// leave a regular .git directory, so this works after either fetch.
func ReadRepoHead(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryGit, "failed to open repository").
			WithContext("path", repoPath).
			Build()
	}
	head, err := repo.Head()
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryGit, "failed to resolve HEAD").
			WithContext("path", repoPath).
			Build()
	}
	return head.Hash().String(), nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
