package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyArgs       = "args"
	KeyReference  = "reference"
	KeyTarget     = "target"
	KeyRepo       = "repository"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeySuccess    = "success"
	KeyBackend    = "backend"
	KeyWorkspace  = "workspace"
	KeyEnv        = "environment"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Step(name string) slog.Attr       { return slog.String(KeyStep, name) }
func Args(a []string) slog.Attr        { return slog.Any(KeyArgs, a) }
func Reference(ref string) slog.Attr   { return slog.String(KeyReference, ref) }
func Target(tier string) slog.Attr     { return slog.String(KeyTarget, tier) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func ExitCode(c int) slog.Attr         { return slog.Int(KeyExitCode, c) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Success(ok bool) slog.Attr        { return slog.Bool(KeySuccess, ok) }
func Backend(b string) slog.Attr       { return slog.String(KeyBackend, b) }
func Workspace(w string) slog.Attr     { return slog.String(KeyWorkspace, w) }
func Environment(env string) slog.Attr { return slog.String(KeyEnv, env) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
