// Package git fetches the source repository for a run.
//
// Every fetch is a fresh shallow clone (depth 1) of a single branch or tag into a
// destination that is removed first. Two backends implement Fetcher:
//   - GoGitFetcher clones in-process with go-git and HTTP basic token auth
//   - CLIFetcher runs the git binary and reports its real exit code
//
// All captured output is passed through a redact.Redactor before it is returned,
// logged or attached to a CloneError.
package git
