package v1

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/domain"
)

func TestSessionEndBeaconCompletesSession(t *testing.T) {
	e := echo.New()
	h, st := newTestHandler(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-10 * time.Minute)
	seedActivity(t, st, "u1", "s1", "c1", start)

	rec, c := postJSON(e, "/analytics/session_end", map[string]any{
		"user_id":          "u1",
		"session_id":       "s1",
		"total_messages":   3,
		"duration_seconds": 600.0,
	})
	require.NoError(t, h.SessionEnd(c))
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, domain.SessionStatusCompleted, sess.Status)
	require.NotNil(t, sess.EndTime)

	conv, err := st.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, domain.ConversationStatusCompleted, conv.Status)

	user, err := st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.EqualValues(t, 1, user.TotalConversations)
	assert.Equal(t, conv.Duration, user.TotalDuration)
}

func TestSessionEndRequiresIdentifiers(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	rec, c := postJSON(e, "/analytics/session_end", map[string]any{"user_id": "u1"})
	require.NoError(t, h.SessionEnd(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
