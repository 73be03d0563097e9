package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
		"user_input": "hello",
		"page_url": "https://example.com/tyres",
		"user_id": "u42",
		"user_location": {"latitude": 12.97, "longitude": 77.59, "accuracy": 20}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", env.UserInput)
	assert.Equal(t, "https://example.com/tyres", env.PageURL)
	assert.Equal(t, "u42", env.UserID)
	require.NotNil(t, env.UserLocation)
	assert.Equal(t, 12.97, env.UserLocation.Latitude)
}

func TestParseEnvelopeRejectsBadJSON(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"user_input": `))
	assert.Error(t, err)
}

func TestParseEnvelopeRejectsOutOfRangeLocation(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"user_location": {"latitude": 91, "longitude": 0}}`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"user_location": {"latitude": 0, "longitude": -181}}`))
	assert.Error(t, err)
}

func TestParseEnvelopeEmptyFrame(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, env.UserInput)
	assert.Nil(t, env.UserLocation)
}

func TestTurnsFromHistoryPairsMessages(t *testing.T) {
	turns := turnsFromHistory([]HistoryEntry{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "bot", Content: "a2"},
		{Role: "user", Content: "q3"},
	})
	require.Len(t, turns, 3)
	assert.Equal(t, "q1", turns[0].Question)
	assert.Equal(t, "a1", turns[0].Answer)
	assert.Equal(t, "a2", turns[1].Answer)
	// Trailing unanswered question still surfaces.
	assert.Equal(t, "q3", turns[2].Question)
	assert.Empty(t, turns[2].Answer)
}

func TestTurnsFromHistoryTextFallback(t *testing.T) {
	turns := turnsFromHistory([]HistoryEntry{
		{Role: "user", Text: "from text field"},
		{Role: "assistant", Text: "reply"},
	})
	require.Len(t, turns, 1)
	assert.Equal(t, "from text field", turns[0].Question)
	assert.Equal(t, "reply", turns[0].Answer)
}

func TestTurnsFromHistoryIgnoresUnknownRoles(t *testing.T) {
	turns := turnsFromHistory([]HistoryEntry{
		{Role: "system", Content: "preamble"},
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	})
	require.Len(t, turns, 1)
	assert.Equal(t, "q", turns[0].Question)
}
