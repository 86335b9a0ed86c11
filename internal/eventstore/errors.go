package eventstore

import (
	"git.home.luguber.info/inful/dbtrunner/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.JournalError("could not open run journal database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.JournalError("failed to initialize run journal schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.JournalError("failed to append event to journal").Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.JournalError("failed to query events from journal").Build()
)

// wrap attaches cause to one of the sentinels so errors.Is matches the sentinel.
func wrap(sentinel *errors.ClassifiedError, cause error) error {
	return errors.WrapError(cause, errors.CategoryJournal, sentinel.Message()).Build()
}
