package git

import "strings"

// Reasons attached to CloneError.Reason.
const (
	ReasonAuth        = "auth"
	ReasonNotFound    = "not_found"
	ReasonNetwork     = "network"
	ReasonRateLimit   = "rate_limit"
	ReasonProtocol    = "unsupported_protocol"
	ReasonMissingRef  = "missing_reference"
	ReasonCanceled    = "canceled"
	ReasonUnspecified = ""
)

// classifyReason maps go-git or command-line git error text onto a coarse reason used in
// diagnostics. The clone is never retried, so this is informational only.
func classifyReason(err error) string {
	if err == nil {
		return ReasonUnspecified
	}
	if isMissingRef(err) {
		return ReasonMissingRef
	}
	return classifyText(err.Error())
}

func classifyText(msg string) string {
	l := strings.ToLower(msg)
	switch {
	case strings.Contains(l, "context canceled") || strings.Contains(l, "deadline exceeded"):
		return ReasonCanceled
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") ||
		strings.Contains(l, "could not read username") || strings.Contains(l, "invalid credentials") ||
		strings.Contains(l, "invalid username or password"):
		return ReasonAuth
	case strings.Contains(l, "remote branch") && strings.Contains(l, "not found"),
		strings.Contains(l, "couldn't find remote ref"):
		return ReasonMissingRef
	case strings.Contains(l, "repository not found") || strings.Contains(l, "does not exist") ||
		strings.Contains(l, "not found"):
		return ReasonNotFound
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "connection refused") || strings.Contains(l, "timeout") ||
		strings.Contains(l, "no route to host") || strings.Contains(l, "could not resolve host"):
		return ReasonNetwork
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return ReasonProtocol
	default:
		return ReasonUnspecified
	}
}
