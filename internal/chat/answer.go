package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatlytics/internal/history"
	"chatlytics/internal/llm"
	"chatlytics/internal/retriever"
)

const defaultSystemPrompt = `You are a helpful customer support assistant.
Answer using the reference material below when it is relevant. If the
material does not cover the question, say so instead of guessing. Keep
answers short and direct.`

// Answerer assembles the prompt for one turn: system instructions, retrieved
// documents, recent conversation history and an optional location hint.
type Answerer struct {
	llm          llm.Client
	retriever    retriever.Retriever
	systemPrompt string
	topK         int
	log          *slog.Logger
}

func NewAnswerer(client llm.Client, ret retriever.Retriever, systemPrompt string, topK int, log *slog.Logger) *Answerer {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Answerer{llm: client, retriever: ret, systemPrompt: systemPrompt, topK: topK, log: log}
}

// Answer generates a reply for question. Retrieval failures degrade to an
// answer without reference material rather than failing the turn.
func (a *Answerer) Answer(ctx context.Context, question string, turns []history.Turn, locationContext string) (string, error) {
	var docs []retriever.Document
	if a.retriever != nil {
		found, err := a.retriever.Search(ctx, question, a.topK)
		if err != nil {
			a.log.Warn("retrieval failed, answering without reference material", "error", err)
		} else {
			docs = found
		}
	}

	var sb strings.Builder
	sb.WriteString(a.systemPrompt)
	if len(docs) > 0 {
		sb.WriteString("\n\nReference material:\n")
		for i, d := range docs {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, d.Content)
		}
	}
	if locationContext != "" {
		fmt.Fprintf(&sb, "\nThe user is located in %s.", locationContext)
	}

	msgs := make([]llm.Message, 0, 2*len(turns)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Question})
		if t.Answer != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Answer})
		}
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	resp, err := a.llm.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return resp.Content, nil
}
