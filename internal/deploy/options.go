// Package deploy validates publishing options for a workspace and hands them to an
// external publishing command.
//
// All validation happens in Build before any network activity, so a malformed
// invocation never reaches the remote workspace.
package deploy

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation"
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

// Feature flags handed to the publisher.
const (
	FlagShortcutPublish           = "enable_shortcut_publish"
	FlagEnvironmentVarReplacement = "enable_environment_variable_replacement"
)

// DefaultRestrictedEnvironments may republish shortcut items.
var DefaultRestrictedEnvironments = []string{"DEV", "STG"}

// ServicePrincipal is a non-interactive identity for the target workspace.
type ServicePrincipal struct {
	ClientID     string
	ClientSecret string
	TenantID     string
}

// Args are the raw invocation values before validation.
type Args struct {
	WorkspaceID         string
	WorkspaceName       string
	Environment         string
	RepositoryDirectory string
	ItemsInScope        string
	ClientID            string
	ClientSecret        string
	TenantID            string
}

// Options is the validated publishing request.
type Options struct {
	WorkspaceID         string
	WorkspaceName       string
	Environment         string
	RepositoryDirectory string
	ItemTypesInScope    []string
	Credential          foundation.Option[ServicePrincipal]
	FeatureFlags        []string
}

// ArgumentValidationError reports an incomplete or contradictory invocation.
type ArgumentValidationError struct {
	Fields []string
	Reason string
}

func (e *ArgumentValidationError) Error() string {
	return fmt.Sprintf("invalid arguments (%s): %s", strings.Join(e.Fields, ", "), e.Reason)
}

func (e *ArgumentValidationError) Category() errors.ErrorCategory { return errors.CategoryValidation }

func (e *ArgumentValidationError) Details() map[string]any {
	return map[string]any{
		"kind":   "argument_validation",
		"fields": slices.Clone(e.Fields),
		"reason": e.Reason,
	}
}

// Build validates a and derives the feature flags for its environment. restricted
// lists the environments that may republish shortcuts; nil means the defaults.
func Build(a Args, restricted []string) (Options, error) {
	if err := ValidateWorkspace(a.WorkspaceID, a.WorkspaceName); err != nil {
		return Options{}, err
	}
	cred, err := ResolveCredential(a.ClientID, a.ClientSecret, a.TenantID)
	if err != nil {
		return Options{}, err
	}
	if restricted == nil {
		restricted = DefaultRestrictedEnvironments
	}
	return Options{
		WorkspaceID:         strings.TrimSpace(a.WorkspaceID),
		WorkspaceName:       strings.TrimSpace(a.WorkspaceName),
		Environment:         a.Environment,
		RepositoryDirectory: a.RepositoryDirectory,
		ItemTypesInScope:    ParseScope(a.ItemsInScope),
		Credential:          cred,
		FeatureFlags:        FeatureFlagsFor(a.Environment, restricted),
	}, nil
}

// ValidateWorkspace requires exactly one of id and name.
func ValidateWorkspace(id, name string) error {
	hasID := strings.TrimSpace(id) != ""
	hasName := strings.TrimSpace(name) != ""
	switch {
	case !hasID && !hasName:
		return &ArgumentValidationError{
			Fields: []string{"workspace_id", "workspace_name"},
			Reason: "either workspace_id or workspace_name must be provided",
		}
	case hasID && hasName:
		return &ArgumentValidationError{
			Fields: []string{"workspace_id", "workspace_name"},
			Reason: "workspace_id and workspace_name are mutually exclusive",
		}
	}
	return nil
}

// ResolveCredential accepts all three service principal values or none of them.
func ResolveCredential(clientID, clientSecret, tenantID string) (foundation.Option[ServicePrincipal], error) {
	values := map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"tenant_id":     tenantID,
	}
	var present, missing []string
	for _, name := range []string{"client_id", "client_secret", "tenant_id"} {
		if strings.TrimSpace(values[name]) != "" {
			present = append(present, name)
		} else {
			missing = append(missing, name)
		}
	}
	switch len(present) {
	case 0:
		return foundation.None[ServicePrincipal](), nil
	case 3:
		return foundation.Some(ServicePrincipal{ClientID: clientID, ClientSecret: clientSecret, TenantID: tenantID}), nil
	}
	return foundation.None[ServicePrincipal](), &ArgumentValidationError{
		Fields: missing,
		Reason: fmt.Sprintf("client_id, client_secret and tenant_id must be provided together (got %s)", strings.Join(present, ", ")),
	}
}

// ParseScope splits a comma separated item type list, trimming blanks.
func ParseScope(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FeatureFlagsFor returns the flags for env. Shortcut publishing is only enabled for
// restricted environments (compared upper-cased); variable replacement is always on.
func FeatureFlagsFor(env string, restricted []string) []string {
	var flags []string
	upper := strings.ToUpper(strings.TrimSpace(env))
	for _, r := range restricted {
		if upper != "" && strings.ToUpper(strings.TrimSpace(r)) == upper {
			flags = append(flags, FlagShortcutPublish)
			break
		}
	}
	return append(flags, FlagEnvironmentVarReplacement)
}
