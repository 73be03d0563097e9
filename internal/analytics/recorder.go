package analytics

import (
	"context"
	"errors"
	"log/slog"

	"chatlytics/internal/domain"
	"chatlytics/internal/store"
)

// ErrMissingUserID is the failure cause for events with no user id.
var ErrMissingUserID = errors.New("no user id on event")

// Recorder wraps one processor invocation per event in a single atomic
// transaction. Either all of an event's writes commit or none do.
//
// Record never returns an error: recording failures must not break the
// live conversation, so they surface only as Failed outcomes that the
// caller logs and discards.
type Recorder struct {
	store store.Store
	log   *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(st store.Store, log *slog.Logger) *Recorder {
	return &Recorder{store: st, log: log}
}

// Record applies one event atomically.
func (r *Recorder) Record(ctx context.Context, ev domain.Event) Outcome {
	if ev.UserID == "" {
		r.log.Warn("dropping event without user id", "kind", ev.Kind, "session_id", ev.SessionID)
		return Outcome{Status: StatusFailed, Err: ErrMissingUserID}
	}

	var out Outcome
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := Apply(ctx, tx, ev)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		r.log.Error("event recording failed, transaction rolled back",
			"kind", ev.Kind, "user_id", ev.UserID, "session_id", ev.SessionID, "error", err)
		return Outcome{Status: StatusFailed, Err: err}
	}

	if out.Status == StatusSkippedNoActiveConversation {
		r.log.Warn("no active conversation for event",
			"kind", ev.Kind, "session_id", ev.SessionID)
	}
	return out
}
