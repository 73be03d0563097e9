package reaper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/domain"
	"chatlytics/internal/store"
)

func seed(t *testing.T, st store.Store, userID, sessionID, convID string, start time.Time) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.EnsureUser(ctx, userID, start); err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, &domain.Session{
			SessionID: sessionID,
			UserID:    userID,
			StartTime: start,
			Status:    domain.SessionStatusActive,
		}); err != nil {
			return err
		}
		if convID == "" {
			return nil
		}
		return tx.CreateConversation(ctx, &domain.Conversation{
			ConversationID: convID,
			SessionID:      sessionID,
			UserID:         userID,
			StartTime:      start,
			Status:         domain.ConversationStatusActive,
		})
	})
	require.NoError(t, err)
}

func TestSweepClosesAbandonedSessions(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed(t, st, "u1", "abandoned", "c1", base)
	seed(t, st, "u2", "fresh", "c2", base.Add(9*time.Minute))

	r := New(st, 5*time.Minute, slog.Default())
	require.NoError(t, r.Sweep(context.Background(), base.Add(10*time.Minute)))

	ctx := context.Background()

	sess, err := st.GetSession(ctx, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, sess.Status)
	require.NotNil(t, sess.EndTime)

	conv, err := st.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusCompleted, conv.Status)

	u, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	// Within the timeout, untouched.
	sess, err = st.GetSession(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, sess.Status)
}

func TestSweepFoldsConversationIntoUserTotals(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed(t, st, "u1", "s1", "c1", base)

	r := New(st, 5*time.Minute, slog.Default())
	require.NoError(t, r.Sweep(context.Background(), base.Add(10*time.Minute)))

	ctx := context.Background()

	conv, err := st.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusCompleted, conv.Status)
	assert.EqualValues(t, 600, conv.Duration)

	// The user's totals match the completed conversation row: one
	// conversation, its full duration.
	u, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, u.TotalConversations)
	assert.EqualValues(t, 600, u.TotalDuration)
	assert.False(t, u.IsActive)

	// A second sweep finds nothing active and moves nothing.
	require.NoError(t, r.Sweep(ctx, base.Add(20*time.Minute)))
	u, err = st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, u.TotalConversations)
	assert.EqualValues(t, 600, u.TotalDuration)
}

func TestSweepMeasuresFromLastMessage(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed(t, st, "u1", "chatty", "c1", base)
	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.BumpSessionMessages(context.Background(), "chatty", base.Add(8*time.Minute))
	}))

	r := New(st, 5*time.Minute, slog.Default())
	require.NoError(t, r.Sweep(context.Background(), base.Add(10*time.Minute)))

	// Last message was 2 minutes ago, so the session survives even though it
	// started 10 minutes ago.
	sess, err := st.GetSession(context.Background(), "chatty")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, sess.Status)
}

func TestSweepEmptyStore(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r := New(st, 5*time.Minute, slog.Default())
	assert.NoError(t, r.Sweep(context.Background(), time.Now().UTC()))
}
