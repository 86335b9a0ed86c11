package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

func TestResolveCredentialAcceptsAllOrNone(t *testing.T) {
	values := [3]string{"client-id", "client-secret", "tenant-id"}
	for mask := 0; mask < 8; mask++ {
		var in [3]string
		count := 0
		for i := range in {
			if mask&(1<<i) != 0 {
				in[i] = values[i]
				count++
			}
		}

		cred, err := ResolveCredential(in[0], in[1], in[2])
		switch count {
		case 0:
			require.NoError(t, err, "mask %03b", mask)
			assert.True(t, cred.IsNone())
		case 3:
			require.NoError(t, err, "mask %03b", mask)
			assert.Equal(t, ServicePrincipal{ClientID: "client-id", ClientSecret: "client-secret", TenantID: "tenant-id"}, cred.Unwrap())
		default:
			var argErr *ArgumentValidationError
			require.ErrorAs(t, err, &argErr, "mask %03b", mask)
			assert.Len(t, argErr.Fields, 3-count)
			assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
			assert.NotContains(t, err.Error(), "client-secret", "values never appear in the message")
		}
	}
}

func TestResolveCredentialTreatsBlankAsMissing(t *testing.T) {
	_, err := ResolveCredential("client-id", "   ", "tenant-id")
	var argErr *ArgumentValidationError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, []string{"client_secret"}, argErr.Fields)
}

func TestValidateWorkspace(t *testing.T) {
	assert.NoError(t, ValidateWorkspace("0b5e-id", ""))
	assert.NoError(t, ValidateWorkspace("", "Analytics [DEV]"))

	var argErr *ArgumentValidationError
	require.ErrorAs(t, ValidateWorkspace("", " "), &argErr)
	assert.Contains(t, argErr.Reason, "must be provided")
	require.ErrorAs(t, ValidateWorkspace("id", "name"), &argErr)
	assert.Contains(t, argErr.Reason, "mutually exclusive")
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, []string{"Notebook", "DataPipeline", "Lakehouse"}, ParseScope("Notebook, DataPipeline,,Lakehouse ,"))
	assert.Nil(t, ParseScope(""))
	assert.Nil(t, ParseScope(" , "))
}

func TestFeatureFlagsFor(t *testing.T) {
	tests := []struct {
		env          string
		wantShortcut bool
	}{
		{"prod", false},
		{"PROD", false},
		{"stg", true},
		{"STG", true},
		{"dev", true},
		{" Dev ", true},
		{"", false},
		{"uat", false},
	}
	for _, tt := range tests {
		flags := FeatureFlagsFor(tt.env, DefaultRestrictedEnvironments)
		assert.Equal(t, tt.wantShortcut, contains(flags, FlagShortcutPublish), tt.env)
		assert.True(t, contains(flags, FlagEnvironmentVarReplacement), tt.env)
	}
	assert.Equal(t, []string{FlagShortcutPublish, FlagEnvironmentVarReplacement}, FeatureFlagsFor("test", []string{"test"}))
}

func TestBuild(t *testing.T) {
	opts, err := Build(Args{
		WorkspaceName:       "Analytics [STG]",
		Environment:         "STG",
		RepositoryDirectory: "fabric-workspaces/data-and-analytics",
		ItemsInScope:        "Notebook,Environment",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Notebook", "Environment"}, opts.ItemTypesInScope)
	assert.Equal(t, []string{FlagShortcutPublish, FlagEnvironmentVarReplacement}, opts.FeatureFlags)
	assert.True(t, opts.Credential.IsNone())

	_, err = Build(Args{WorkspaceID: "id", ClientID: "only-client"}, nil)
	var argErr *ArgumentValidationError
	assert.ErrorAs(t, err, &argErr)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
