package git

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
	"git.home.luguber.info/inful/dbtrunner/internal/redact"
)

// exitFatal is the exit status git uses for fatal clone errors. The go-git backend reports
// it for every failure so both backends produce comparable outcomes.
const exitFatal = 128

// Request describes one fetch. Token is optional; when set it is used for HTTP basic
// auth and registered with the redactor.
type Request struct {
	URL         string
	Token       string
	Reference   string
	Destination string
}

// FetchOutcome is the redacted result of a fetch.
type FetchOutcome struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Fetcher obtains a fresh shallow copy of a repository at a reference. Destination is
// removed first when it exists. A non-zero exit yields a *CloneError.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (FetchOutcome, error)
}

// CloneError reports a failed fetch. URL and Outcome are already redacted.
type CloneError struct {
	URL       string
	Reference string
	Reason    string
	Outcome   FetchOutcome
	Err       error
}

func (e *CloneError) Error() string {
	msg := fmt.Sprintf("clone of %s at %q failed with exit code %d", e.URL, e.Reference, e.Outcome.ExitCode)
	if last := lastLine(e.Outcome.Stderr); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *CloneError) Unwrap() error { return e.Err }

func (e *CloneError) Category() errors.ErrorCategory { return errors.CategoryGit }

func (e *CloneError) Details() map[string]any {
	d := map[string]any{
		"kind":      "clone",
		"url":       e.URL,
		"reference": e.Reference,
		"exit_code": e.Outcome.ExitCode,
		"stdout":    e.Outcome.Stdout,
		"stderr":    e.Outcome.Stderr,
	}
	if e.Reason != "" {
		d["reason"] = e.Reason
	}
	return d
}

// WithCredential returns rawURL with token embedded as HTTP userinfo. Non-HTTP URLs and
// empty tokens are returned unchanged.
func WithCredential(rawURL, token string) string {
	if token == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return rawURL
	}
	u.User = url.UserPassword("token", token)
	return u.String()
}

// prepareDestination removes any stale copy so the fetch never merges into old state.
func prepareDestination(dest string) error {
	if dest == "" {
		return errors.GitError("fetch destination is required").Build()
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove existing destination").
			WithContext("path", dest).
			Build()
	}
	return nil
}

// newRedactor returns the configured redactor extended with the request token, or a
// fresh one when none was configured.
func newRedactor(base *redact.Redactor, token string) *redact.Redactor {
	if base == nil {
		base = redact.New()
	}
	base.Add(token)
	return base
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
