package v1

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatlytics/internal/analytics"
	"chatlytics/internal/domain"
	"chatlytics/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	log := slog.Default()
	return NewHandler(st, analytics.NewRecorder(st, log), log), st
}

func seedActivity(t *testing.T, st store.Store, userID, sessionID, convID string, start time.Time) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.EnsureUser(ctx, userID, start); err != nil {
			return err
		}
		if err := tx.BumpUserSessions(ctx, userID, "https://example.com"); err != nil {
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
		if err := tx.CreateConversation(ctx, &domain.Conversation{
			ConversationID: convID,
			SessionID:      sessionID,
			UserID:         userID,
			StartTime:      start,
			Status:         domain.ConversationStatusActive,
		}); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, &domain.Message{
			MessageID:      convID + "-m1",
			ConversationID: convID,
			UserID:         userID,
			Role:           domain.MessageRoleUser,
			Content:        "hello",
			Timestamp:      start,
		})
	})
	require.NoError(t, err)
}
