package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/store"
)

func postQuery(t *testing.T, url string, body any) (*http.Response, QueryResponse) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url+"/chat/query", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out QueryResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestQueryAnswersAndRecords(t *testing.T) {
	ts, st, _ := newTestServer(t)
	ctx := context.Background()

	resp, got := postQuery(t, ts.URL, map[string]any{
		"user_input": "What are your opening hours?",
		"page_url":   "https://example.com/contact",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "We are open 9 to 5.", got.Text)
	require.NotEmpty(t, got.UserID)

	// Generated ids must be full UUIDs.
	_, err := uuid.Parse(got.SessionID)
	require.NoError(t, err)
	assert.Len(t, got.SessionID, 36)

	sess, err := st.GetSession(ctx, got.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "https://example.com/contact", sess.PageURL)

	// Both sides of the turn are persisted. The store-level read happens
	// after the transaction: with a one-connection pool a nested read on
	// the store would deadlock.
	var conversationID string
	err = st.WithTx(ctx, func(tx store.Tx) error {
		conv, err := tx.ActiveConversation(ctx, got.SessionID)
		require.NoError(t, err)
		require.NotNil(t, conv)
		conversationID = conv.ConversationID
		return nil
	})
	require.NoError(t, err)

	msgs, err := st.ListMessages(ctx, conversationID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestQueryKeepsClientIdentifiers(t *testing.T) {
	ts, _, cache := newTestServer(t)

	resp, got := postQuery(t, ts.URL, map[string]any{
		"user_input": "hello",
		"session_id": "s-query-1",
		"user_id":    "u-query-1",
		"chat_history": []map[string]string{
			{"role": "user", "content": "earlier question"},
			{"role": "assistant", "content": "earlier answer"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s-query-1", got.SessionID)
	assert.Equal(t, "u-query-1", got.UserID)

	// Supplied history plus the answered turn live in the shared cache.
	turns := cache.Turns("s-query-1")
	require.Len(t, turns, 2)
	assert.Equal(t, "earlier question", turns[0].Question)
	assert.Equal(t, "hello", turns[1].Question)
}

func TestQueryRequiresInput(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := postQuery(t, ts.URL, map[string]string{"page_url": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGeneratedSessionIDsAreDistinct(t *testing.T) {
	a, b := newSessionID(), newSessionID()
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
