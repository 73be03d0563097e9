// Package reaper closes sessions whose connection died without a clean
// session_end.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"chatlytics/internal/store"
)

const sweepBatchSize = 200

// Reaper periodically completes sessions with no activity past the timeout.
// Each reaped session also completes its active conversation and marks the
// owning user inactive, all inside one transaction per sweep batch.
type Reaper struct {
	store   store.Store
	timeout time.Duration
	cron    *cron.Cron
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Reaper sweeping on interval with the given inactivity
// timeout.
func New(st store.Store, timeout time.Duration, log *slog.Logger) *Reaper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reaper{
		store:   st,
		timeout: timeout,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start schedules the sweep. spec is a cron expression, typically
// "*/5 * * * *".
func (r *Reaper) Start(spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		if err := r.Sweep(r.ctx, time.Now().UTC()); err != nil {
			r.log.Error("session sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	r.cron.Start()
	r.log.Info("reaper started", "schedule", spec, "timeout", r.timeout)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	r.cancel()
	r.log.Info("reaper stopped")
}

// Sweep completes every session idle since before now minus the timeout.
// Inactivity is measured from the last message, or from session start when
// the session never carried a message.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-r.timeout)

	var reaped int
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		sessions, err := tx.TimedOutSessions(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return err
		}
		for _, sess := range sessions {
			if err := tx.ReapSession(ctx, sess.SessionID, now); err != nil {
				return fmt.Errorf("reap session %s: %w", sess.SessionID, err)
			}
			conv, err := tx.ActiveConversation(ctx, sess.SessionID)
			if err != nil {
				return fmt.Errorf("find conversation for %s: %w", sess.SessionID, err)
			}
			if conv == nil {
				if err := tx.DeactivateUser(ctx, sess.UserID, now); err != nil {
					return fmt.Errorf("deactivate user %s: %w", sess.UserID, err)
				}
			} else {
				// A reaped conversation feeds the user totals the same way a
				// clean session_end does, keeping total_conversations and
				// total_duration equal to the completed rows.
				duration, err := tx.CompleteConversation(ctx, conv.ConversationID, now)
				if err != nil {
					return fmt.Errorf("complete conversation %s: %w", conv.ConversationID, err)
				}
				if err := tx.FinishUser(ctx, sess.UserID, now, duration); err != nil {
					return fmt.Errorf("finish user %s: %w", sess.UserID, err)
				}
			}
			reaped++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if reaped > 0 {
		r.log.Info("reaped inactive sessions", "count", reaped, "cutoff", cutoff)
	}
	return nil
}
