// Package domain defines the core entity models for the analytics engine.
package domain

// SessionStatus represents the lifecycle status of a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// ConversationStatus represents the lifecycle status of a conversation.
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusCompleted ConversationStatus = "completed"
	ConversationStatusHandover  ConversationStatus = "handover"
)

// MessageRole represents who authored a message.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleBot    MessageRole = "bot"
	MessageRoleSystem MessageRole = "system"
)

// UserType classifies a user as new or returning.
type UserType string

const (
	UserTypeNew       UserType = "new"
	UserTypeReturning UserType = "returning"
)

// HandoverStatus represents the lifecycle status of a handover request.
type HandoverStatus string

const (
	HandoverStatusPending  HandoverStatus = "pending"
	HandoverStatusResolved HandoverStatus = "resolved"
)
