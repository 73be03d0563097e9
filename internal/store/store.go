// Package store defines the storage interface and the SQLite implementation.
package store

import (
	"context"
	"encoding/json"
	"time"

	"chatlytics/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// WithTx runs fn inside a single transaction: commit on nil return,
	// full rollback otherwise. The transaction is released on every exit
	// path, including panics.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Direct reads
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// Session metadata maintained by the live connection outside event
	// processing
	UpdateSessionPage(ctx context.Context, sessionID, pageURL string) error
	UpdateSessionLocation(ctx context.Context, sessionID string, location json.RawMessage) error
	ReassignSession(ctx context.Context, sessionID, userID string) error

	// Satellite records
	CreateLead(ctx context.Context, lead *domain.Lead) error
	ListLeads(ctx context.Context, limit int) ([]domain.Lead, error)
	CountLeads(ctx context.Context) (int64, error)
	CreateHandover(ctx context.Context, h *domain.HandoverRequest) (int64, error)
	ListHandovers(ctx context.Context, limit int) ([]domain.HandoverRequest, error)
	CountHandovers(ctx context.Context) (int64, error)
	ResolveHandover(ctx context.Context, handoverID int64) error
	CreateCloseEvent(ctx context.Context, e *domain.CloseEvent) error

	// Reporting projections
	Overview(ctx context.Context) (*OverviewReport, error)
	SessionsReport(ctx context.Context, startOfDay time.Time) (*SessionsReport, error)
	ConversationsReport(ctx context.Context) (*ConversationsReport, error)
	MessagesReport(ctx context.Context) (*MessagesReport, error)
	UserReport(ctx context.Context, userID string) (*UserReport, error)

	// Lifecycle
	Close() error
}

// Tx is the closed set of transaction-scoped entity operations the event
// processor and the reaper drive. All completion updates are guarded on
// status = 'active' so applying them twice is safe and durations are set
// exactly once.
type Tx interface {
	// Users
	EnsureUser(ctx context.Context, userID string, now time.Time) error
	BumpUserSessions(ctx context.Context, userID, pageURL string) error
	BumpUserMessages(ctx context.Context, userID string) error
	MarkUserReturning(ctx context.Context, userID string, now time.Time) error
	DeactivateUser(ctx context.Context, userID string, now time.Time) error
	FinishUser(ctx context.Context, userID string, now time.Time, durationSeconds int64) error

	// Sessions
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	CreateSession(ctx context.Context, session *domain.Session) error
	CompleteSession(ctx context.Context, sessionID string, end time.Time) error
	ReapSession(ctx context.Context, sessionID string, end time.Time) error
	BumpSessionMessages(ctx context.Context, sessionID string, now time.Time) error

	// Conversations
	ActiveConversation(ctx context.Context, sessionID string) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, conversation *domain.Conversation) error
	CompleteConversation(ctx context.Context, conversationID string, end time.Time) (int64, error)

	// Messages
	InsertMessage(ctx context.Context, message *domain.Message) error

	// Reaper candidate selection
	TimedOutSessions(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error)
}
