package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// GoGitFetcher clones in-process with go-git.
type GoGitFetcher struct {
	redactor  *redact.Redactor
	tailBytes int
}

// NewGoGitFetcher returns a fetcher whose captured output is limited to tailBytes and
// passed through r.
func NewGoGitFetcher(r *redact.Redactor, tailBytes int) *GoGitFetcher {
	return &GoGitFetcher{redactor: r, tailBytes: tailBytes}
}

func (f *GoGitFetcher) Fetch(ctx context.Context, req Request) (FetchOutcome, error) {
	r := newRedactor(f.redactor, req.Token)
	safeURL := r.String(redact.URL(req.URL))

	if err := prepareDestination(req.Destination); err != nil {
		return FetchOutcome{ExitCode: 1}, err
	}
	slog.Debug("Cloning repository", logfields.URL(safeURL), logfields.Reference(req.Reference), logfields.Path(req.Destination))

	progress := redact.NewTail(f.tailBytes)
	var auth transport.AuthMethod
	if req.Token != "" {
		auth = &http.BasicAuth{Username: "token", Password: req.Token}
	}

	var err error
	for _, ref := range candidateRefs(req.Reference) {
		opts := &git.CloneOptions{
			URL:           req.URL,
			Auth:          auth,
			Depth:         1,
			SingleBranch:  true,
			ReferenceName: ref,
			Tags:          git.NoTags,
			Progress:      progress,
		}
		var repo *git.Repository
		repo, err = git.PlainCloneContext(ctx, req.Destination, false, opts)
		if err == nil {
			logHead(repo, req.Reference, req.Destination)
			return FetchOutcome{Stderr: r.String(progress.String())}, nil
		}
		if !isMissingRef(err) {
			break
		}
		if rmErr := prepareDestination(req.Destination); rmErr != nil {
			return FetchOutcome{ExitCode: 1}, rmErr
		}
	}

	stderr := progress.String()
	if stderr != "" && stderr[len(stderr)-1] != '\n' {
		stderr += "\n"
	}
	stderr += fmt.Sprintf("fatal: %v\n", err)
	outcome := FetchOutcome{ExitCode: exitFatal, Stderr: r.String(stderr)}
	return outcome, &CloneError{
		URL:       safeURL,
		Reference: req.Reference,
		Reason:    classifyReason(err),
		Outcome:   outcome,
		Err:       err,
	}
}

// candidateRefs lists the references tried in order: an explicit refs/ name as given,
// otherwise the branch and then the tag of that name.
func candidateRefs(reference string) []plumbing.ReferenceName {
	if reference == "" {
		return []plumbing.ReferenceName{""}
	}
	name := plumbing.ReferenceName(reference)
	if name.IsBranch() || name.IsTag() {
		return []plumbing.ReferenceName{name}
	}
	return []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(reference),
		plumbing.NewTagReferenceName(reference),
	}
}

func isMissingRef(err error) bool {
	var noMatch git.NoMatchingRefSpecError
	return stderrors.As(err, &noMatch) || stderrors.Is(err, plumbing.ErrReferenceNotFound)
}

func logHead(repo *git.Repository, reference, dest string) {
	head, err := repo.Head()
	if err != nil {
		slog.Info("Repository cloned", logfields.Reference(reference), logfields.Path(dest))
		return
	}
	slog.Info("Repository cloned",
		logfields.Reference(reference),
		slog.String("commit", shortHash(head.Hash().String())),
		logfields.Path(dest))
}
