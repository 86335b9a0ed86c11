package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "dbtrunner.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		assert.True(t, exists)
		assert.Equal(t, "dbtrunner.yaml", file)
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", ConfigError("test error").Build())

		assert.True(t, IsClassified(err))
		assert.True(t, HasCategory(err, CategoryConfig))
		assert.True(t, HasSeverity(err, SeverityFatal))

		classified, ok := AsClassified(err)
		require.True(t, ok)
		assert.False(t, classified.CanRetry())
		assert.True(t, classified.IsFatal())
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := BuildError("step failed").WithContext("step", "dbt build").Build()
		derived := base.WithContext("exit_code", 2)

		_, ok := base.Context().Get("exit_code")
		assert.False(t, ok)
		v, ok := derived.Context().Get("exit_code")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := WrapError(originalErr, CategoryNetwork, "network failure").
			Warning().
			Retryable().
			WithContext("host", "dev.azure.com").
			Build()

		assert.Equal(t, CategoryNetwork, err.Category())
		assert.Equal(t, SeverityWarning, err.Severity())
		assert.Equal(t, RetryBackoff, err.RetryStrategy())
		assert.ErrorIs(t, err, originalErr)

		host, _ := err.Context().GetString("host")
		assert.Equal(t, "dev.azure.com", host)
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryNever},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryUserAction},
			{"AuthError", AuthError("test"), CategoryAuth, SeverityError, RetryUserAction},
			{"SecretsError", SecretsError("test"), CategorySecrets, SeverityFatal, RetryNever},
			{"NetworkError", NetworkError("test"), CategoryNetwork, SeverityError, RetryBackoff},
			{"GitError", GitError("test"), CategoryGit, SeverityFatal, RetryNever},
			{"BuildError", BuildError("test"), CategoryBuild, SeverityFatal, RetryNever},
			{"ArtifactError", ArtifactError("test"), CategoryArtifact, SeverityFatal, RetryNever},
			{"FileSystemError", FileSystemError("test"), CategoryFileSystem, SeverityError, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				assert.Equal(t, tt.category, err.Category())
				assert.Equal(t, tt.severity, err.Severity())
				assert.Equal(t, tt.retry, err.RetryStrategy())
			})
		}
	})
}

type kindedError struct{}

func (kindedError) Error() string           { return "kinded" }
func (kindedError) Category() ErrorCategory { return CategoryArtifact }
func (kindedError) Details() map[string]any { return map[string]any{"expected_path": "/x"} }

func TestCategorizedAndDetailed(t *testing.T) {
	wrapped := fmt.Errorf("publish: %w", kindedError{})

	assert.Equal(t, CategoryArtifact, GetCategory(wrapped))
	assert.Equal(t, map[string]any{"expected_path": "/x"}, GetDetails(wrapped))

	plain := errors.New("plain")
	assert.Equal(t, CategoryInternal, GetCategory(plain))
	assert.Equal(t, map[string]any{"message": "plain"}, GetDetails(plain))
	assert.Nil(t, GetDetails(nil))

	classified := BuildError("boom").WithContext("step", "dbt build").Build()
	details := GetDetails(classified)
	assert.Equal(t, "dbt build", details["step"])
	assert.Equal(t, "build", details["category"])
}

func TestErrorContext(t *testing.T) {
	ctx1 := make(ErrorContext)
	ctx1 = ctx1.Set("key1", "value1")
	ctx1 = ctx1.Set("shared", "original")

	ctx2 := make(ErrorContext)
	ctx2 = ctx2.Set("key2", "value2")
	ctx2 = ctx2.Set("shared", "overridden")

	merged := ctx1.Merge(ctx2)

	value1, _ := merged.GetString("key1")
	value2, _ := merged.GetString("key2")
	shared, _ := merged.GetString("shared")
	assert.Equal(t, "value1", value1)
	assert.Equal(t, "value2", value2)
	assert.Equal(t, "overridden", shared)

	_, exists := merged.Get("nonexistent")
	assert.False(t, exists)
}
