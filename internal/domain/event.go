package domain

import "time"

// EventKind identifies one of the fixed interaction event types.
type EventKind string

const (
	EventSessionStart   EventKind = "session_start"
	EventQuestionAsked  EventKind = "question_asked"
	EventBotResponse    EventKind = "bot_response"
	EventSessionEnd     EventKind = "session_end"
	EventUserIdentified EventKind = "user_identified"
)

// Event is one interaction event bound for the event processor. Payload is
// the variant matching Kind; the orchestrator validates envelopes so the
// processor never sees a mismatched pair.
type Event struct {
	Kind      EventKind
	UserID    string
	SessionID string
	Time      time.Time
	Payload   EventPayload
}

// EventPayload is the closed set of per-kind payload variants.
type EventPayload interface {
	eventKind() EventKind
}

// SessionStartPayload accompanies session_start.
type SessionStartPayload struct {
	PageURL    string
	RemoteAddr string
}

// QuestionAskedPayload accompanies question_asked. PageURL seeds the
// session row when the question arrives before the session is known.
type QuestionAskedPayload struct {
	Question          string
	ChatHistoryLength int
	Location          *Location
	PageURL           string
}

// BotResponsePayload accompanies bot_response.
type BotResponsePayload struct {
	Response            string
	ResponseTimeSeconds float64
}

// SessionEndPayload accompanies session_end.
type SessionEndPayload struct {
	TotalMessages   int
	DurationSeconds float64
}

// UserIdentifiedPayload accompanies user_identified.
type UserIdentifiedPayload struct {
	PreviousID string
}

func (SessionStartPayload) eventKind() EventKind   { return EventSessionStart }
func (QuestionAskedPayload) eventKind() EventKind  { return EventQuestionAsked }
func (BotResponsePayload) eventKind() EventKind    { return EventBotResponse }
func (SessionEndPayload) eventKind() EventKind     { return EventSessionEnd }
func (UserIdentifiedPayload) eventKind() EventKind { return EventUserIdentified }
