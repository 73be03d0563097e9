package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user id resolves to no row.
var ErrUserNotFound = errors.New("user not found")

// User is a chat visitor. Created on the first event referencing an unknown
// user id; never deleted, only deactivated.
type User struct {
	UserID             string    `json:"user_id"`
	FirstSeenAt        time.Time `json:"first_seen_at"`
	LastActiveAt       time.Time `json:"last_active_at"`
	TotalSessions      int64     `json:"total_sessions"`
	TotalMessages      int64     `json:"total_messages"`
	TotalDuration      int64     `json:"total_duration"`
	TotalConversations int64     `json:"total_conversations"`
	IsActive           bool      `json:"is_active"`
	LastPageURL        string    `json:"last_page_url,omitempty"`
	UserType           UserType  `json:"user_type"`
}

// Session is one live connection's lifetime, owned by a user.
type Session struct {
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Duration        int64           `json:"duration"`
	Status          SessionStatus   `json:"status"`
	PageURL         string          `json:"page_url,omitempty"`
	MessageCount    int64           `json:"message_count"`
	LastMessageTime *time.Time      `json:"last_message_time,omitempty"`
	LocationData    json.RawMessage `json:"location_data,omitempty"`
}

// Conversation is a question/answer exchange within a session. At most one
// conversation per session is active at any time.
type Conversation struct {
	ConversationID string             `json:"conversation_id"`
	SessionID      string             `json:"session_id"`
	UserID         string             `json:"user_id"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        *time.Time         `json:"end_time,omitempty"`
	Duration       int64              `json:"duration"`
	Status         ConversationStatus `json:"status"`
}

// Message is a single utterance in a conversation. Append-only.
type Message struct {
	MessageID      string      `json:"message_id"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Role           MessageRole `json:"message_type"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
}

// Lead is a captured sales lead. Satellite record, no FK into the core
// hierarchy.
type Lead struct {
	LeadID    string    `json:"lead_id"`
	LeadType  string    `json:"lead_type"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandoverRequest is a request to escalate a session to a human agent.
type HandoverRequest struct {
	HandoverID    int64          `json:"handover_id"`
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id"`
	RequestedAt   time.Time      `json:"requested_at"`
	Issues        []string       `json:"issues"`
	OtherText     string         `json:"other_text,omitempty"`
	SupportOption string         `json:"support_option,omitempty"`
	LastMessage   string         `json:"last_message,omitempty"`
	Status        HandoverStatus `json:"status"`
}

// CloseEvent records the user dismissing the chat widget.
type CloseEvent struct {
	CloseID          int64     `json:"close_id"`
	UserID           string    `json:"user_id"`
	SessionID        string    `json:"session_id"`
	ClosedAt         time.Time `json:"closed_at"`
	TimeSpentSeconds float64   `json:"time_spent_seconds"`
	LastUserMessage  string    `json:"last_user_message,omitempty"`
	LastBotMessage   string    `json:"last_bot_message,omitempty"`
}

// Location is a client-reported geographic position, optionally enriched
// with a reverse-geocoded city name.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	City      string  `json:"city,omitempty"`
}
