package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatlytics/internal/domain"
	"chatlytics/internal/history"
)

// Envelope is one inbound application message from the widget. All fields
// are optional; a message with no user_input only updates metadata.
type Envelope struct {
	UserInput    string           `json:"user_input,omitempty"`
	PageURL      string           `json:"page_url,omitempty"`
	UserID       string           `json:"user_id,omitempty"`
	UserLocation *domain.Location `json:"user_location,omitempty"`
	ChatHistory  []HistoryEntry   `json:"chat_history,omitempty"`
}

// HistoryEntry is one client-supplied prior message.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Text    string `json:"text,omitempty"`
}

// Reply is the outbound frame for one turn.
type Reply struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Done  bool   `json:"done"`
}

// ParseEnvelope validates an inbound frame. Location payloads with
// out-of-range coordinates are rejected here so the event processor never
// sees them.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON message: %w", err)
	}
	if loc := env.UserLocation; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, fmt.Errorf("location out of range: %f, %f", loc.Latitude, loc.Longitude)
		}
	}
	return &env, nil
}

func (e HistoryEntry) text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Text
}

// turnsFromHistory pairs client-supplied messages into (question, answer)
// turns. A user message opens a turn; the next assistant message closes it.
func turnsFromHistory(entries []HistoryEntry) []history.Turn {
	var turns []history.Turn
	var open *history.Turn
	for _, e := range entries {
		switch strings.ToLower(e.Role) {
		case "user":
			if open != nil {
				turns = append(turns, *open)
			}
			open = &history.Turn{Question: e.text()}
		case "assistant", "bot":
			if open != nil {
				open.Answer = e.text()
				turns = append(turns, *open)
				open = nil
			}
		}
	}
	if open != nil {
		turns = append(turns, *open)
	}
	return turns
}
