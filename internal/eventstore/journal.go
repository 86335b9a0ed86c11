package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/dbtrunner/internal/logfields"
)

// Journal appends events to a Store and keeps a projection current. A nil *Journal
// discards everything, so callers need not check whether journaling is enabled.
type Journal struct {
	store      Store
	projection *RunHistoryProjection
	logger     *slog.Logger
}

func NewJournal(store Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, projection: NewRunHistoryProjection(store, 0), logger: logger}
}

// Record persists ev. Journal failures never fail a run; they are logged.
func (j *Journal) Record(ctx context.Context, ev Event, err error) {
	if j == nil {
		return
	}
	if err != nil {
		j.logger.Warn("Failed to build journal event", logfields.Error(err))
		return
	}
	if appendErr := j.store.Append(ctx, ev.RunID(), ev.Type(), ev.Payload(), ev.Metadata()); appendErr != nil {
		j.logger.Warn("Failed to append journal event",
			logfields.RunID(ev.RunID()),
			slog.String("event_type", ev.Type()),
			logfields.Error(appendErr))
		return
	}
	j.projection.Apply(ev)
}

// Projection returns the live view over recorded events.
func (j *Journal) Projection() *RunHistoryProjection {
	if j == nil {
		return nil
	}
	return j.projection
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.store.Close()
}
