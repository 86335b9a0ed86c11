package errors

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation error", ValidationError("partial credentials").Build(), 2},
		{"auth error", AuthError("unauthorized").Build(), 5},
		{"config error", ConfigError("bad config").Build(), 7},
		{"git error", GitError("clone failed").Build(), 8},
		{"build error", BuildError("step failed").Build(), 11},
		{"artifact error", kindedError{}, 11},
		{"internal error", InternalError("bug").Build(), 10},
		{"unclassified error", &customError{msg: "unknown error"}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	assert.Empty(t, quiet.FormatError(nil))
	assert.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(InternalError("bug").Build()))
	assert.Contains(t, verbose.FormatError(InternalError("bug").Build()), "bug")
	assert.Contains(t, quiet.FormatError(ConfigError("bad config").Build()), "bad config")
	assert.Equal(t, "Error: unknown error", quiet.FormatError(&customError{msg: "unknown error"}))
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))

	code := adapter.Report(&out, GitError("clone failed").Build())

	assert.Equal(t, 8, code)
	assert.Contains(t, out.String(), "clone failed")
	assert.Contains(t, logs.String(), "category=git")
	assert.Equal(t, 0, adapter.Report(&out, nil))
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
