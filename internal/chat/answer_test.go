package chat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/history"
	"chatlytics/internal/llm"
	"chatlytics/internal/retriever"
)

type capturingLLM struct {
	messages []llm.Message
	err      error
}

func (c *capturingLLM) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	c.messages = messages
	if c.err != nil {
		return llm.Response{}, c.err
	}
	return llm.Response{Content: "answer"}, nil
}

type errRetriever struct{}

func (errRetriever) Search(ctx context.Context, query string, k int) ([]retriever.Document, error) {
	return nil, errors.New("index offline")
}

func TestAnswerPromptAssembly(t *testing.T) {
	cl := &capturingLLM{}
	a := NewAnswerer(cl, &fakeRetriever{}, "", 5, nil)

	turns := []history.Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	}
	got, err := a.Answer(context.Background(), "q3", turns, "Pune, Southern India")
	require.NoError(t, err)
	assert.Equal(t, "answer", got)

	// system, two full turns, the new question
	require.Len(t, cl.messages, 6)
	assert.Equal(t, llm.RoleSystem, cl.messages[0].Role)
	assert.Contains(t, cl.messages[0].Content, "Opening hours are 9 to 5.")
	assert.Contains(t, cl.messages[0].Content, "Pune, Southern India")
	assert.Equal(t, llm.RoleUser, cl.messages[1].Role)
	assert.Equal(t, "q1", cl.messages[1].Content)
	assert.Equal(t, llm.RoleAssistant, cl.messages[2].Role)
	assert.Equal(t, "q3", cl.messages[5].Content)
}

func TestAnswerSurvivesRetrieverFailure(t *testing.T) {
	cl := &capturingLLM{}
	var logs bytes.Buffer
	a := NewAnswerer(cl, errRetriever{}, "", 5, slog.New(slog.NewTextHandler(&logs, nil)))

	got, err := a.Answer(context.Background(), "q", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	assert.NotContains(t, cl.messages[0].Content, "Reference material")

	// The failure is worth a trace even though the answer goes out.
	assert.Contains(t, logs.String(), "retrieval failed")
	assert.Contains(t, logs.String(), "index offline")
}

func TestAnswerSkipsUnansweredTurns(t *testing.T) {
	cl := &capturingLLM{}
	a := NewAnswerer(cl, nil, "", 5, nil)

	_, err := a.Answer(context.Background(), "next", []history.Turn{{Question: "pending"}}, "")
	require.NoError(t, err)
	// system, the unanswered question, the new question
	require.Len(t, cl.messages, 3)
	assert.Equal(t, "pending", cl.messages[1].Content)
	assert.Equal(t, "next", cl.messages[2].Content)
}

func TestAnswerPropagatesLLMError(t *testing.T) {
	cl := &capturingLLM{err: errors.New("backend down")}
	a := NewAnswerer(cl, nil, "", 5, nil)

	_, err := a.Answer(context.Background(), "q", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}
