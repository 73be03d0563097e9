package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"chatlytics/internal/domain"
	"chatlytics/internal/history"
)

// QueryRequest is one synchronous question. session_id and user_id are
// optional; omitted ids get generated and returned so the client can keep
// the thread going.
type QueryRequest struct {
	UserInput   string         `json:"user_input"`
	SessionID   string         `json:"session_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	PageURL     string         `json:"page_url,omitempty"`
	ChatHistory []HistoryEntry `json:"chat_history,omitempty"`
}

// QueryResponse is the answered turn.
type QueryResponse struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// HandleQuery answers one question over plain HTTP. It shares the session
// history cache and the recording path with the websocket loop, so a client
// can mix the two against the same session id.
// POST /chat/query
func (s *Server) HandleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserInput == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_input is required"})
	}

	if req.SessionID == "" {
		req.SessionID = newSessionID()
	}
	if req.UserID == "" {
		req.UserID = newUserID()
	}
	s.cache.Register(req.SessionID)
	if len(req.ChatHistory) > 0 {
		s.cache.Replace(req.SessionID, turnsFromHistory(req.ChatHistory))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AnswerTimeout)
	defer cancel()

	turnStart := time.Now().UTC()
	s.recorder.Record(context.Background(), domain.Event{
		Kind:      domain.EventQuestionAsked,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Time:      turnStart,
		Payload: domain.QuestionAskedPayload{
			Question:          req.UserInput,
			ChatHistoryLength: s.cache.Len(req.SessionID),
			PageURL:           req.PageURL,
		},
	})

	answer, err := s.answerer.Answer(ctx, req.UserInput, s.cache.Turns(req.SessionID), "")
	if err != nil {
		s.log.Error("answer generation failed", "session_id", req.SessionID, "error", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "answer generation failed"})
	}

	s.recorder.Record(context.Background(), domain.Event{
		Kind:      domain.EventBotResponse,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Time:      time.Now().UTC(),
		Payload: domain.BotResponsePayload{
			Response:            answer,
			ResponseTimeSeconds: time.Since(turnStart).Seconds(),
		},
	})
	s.cache.Append(req.SessionID, history.Turn{Question: req.UserInput, Answer: answer})

	return c.JSON(http.StatusOK, QueryResponse{
		Text:      answer,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
}
