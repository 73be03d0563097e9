package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chatlytics/internal/domain"
	"chatlytics/internal/store"
)

// Apply executes one event's state transitions against an open transaction.
// A non-nil error means the enclosing transaction must roll back; the
// returned outcome is only meaningful when the error is nil.
//
// Duplicate delivery is not deduplicated: replaying the same question_asked
// event inserts a second message row and double-counts total_messages.
func Apply(ctx context.Context, tx store.Tx, ev domain.Event) (Outcome, error) {
	// Every event creates the user on first reference and touches
	// last_active_at.
	if err := tx.EnsureUser(ctx, ev.UserID, ev.Time); err != nil {
		return Outcome{}, err
	}

	switch p := ev.Payload.(type) {
	case domain.SessionStartPayload:
		return applySessionStart(ctx, tx, ev, p)
	case domain.QuestionAskedPayload:
		return applyQuestionAsked(ctx, tx, ev, p)
	case domain.BotResponsePayload:
		return applyBotResponse(ctx, tx, ev, p)
	case domain.SessionEndPayload:
		return applySessionEnd(ctx, tx, ev)
	case domain.UserIdentifiedPayload:
		if err := tx.MarkUserReturning(ctx, ev.UserID, ev.Time); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusRecorded}, nil
	default:
		return Outcome{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

func applySessionStart(ctx context.Context, tx store.Tx, ev domain.Event, p domain.SessionStartPayload) (Outcome, error) {
	// Only user stats move here; the session and conversation rows are
	// created lazily by the first question.
	if err := tx.BumpUserSessions(ctx, ev.UserID, p.PageURL); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusRecorded}, nil
}

func applyQuestionAsked(ctx context.Context, tx store.Tx, ev domain.Event, p domain.QuestionAskedPayload) (Outcome, error) {
	sess, err := tx.GetSession(ctx, ev.SessionID)
	if err != nil {
		return Outcome{}, err
	}

	var conversationID string
	if sess == nil {
		// Question arrived before the session was known: create both the
		// session and its first conversation.
		if err := tx.CreateSession(ctx, &domain.Session{
			SessionID: ev.SessionID,
			UserID:    ev.UserID,
			StartTime: ev.Time,
			Status:    domain.SessionStatusActive,
			PageURL:   p.PageURL,
		}); err != nil {
			return Outcome{}, err
		}
		conversationID = uuid.New().String()
		if err := tx.CreateConversation(ctx, &domain.Conversation{
			ConversationID: conversationID,
			SessionID:      ev.SessionID,
			UserID:         ev.UserID,
			StartTime:      ev.Time,
			Status:         domain.ConversationStatusActive,
		}); err != nil {
			return Outcome{}, err
		}
	} else {
		conv, err := tx.ActiveConversation(ctx, ev.SessionID)
		if err != nil {
			return Outcome{}, err
		}
		if conv != nil {
			conversationID = conv.ConversationID
		} else {
			// The prior conversation completed; start a fresh one.
			conversationID = uuid.New().String()
			if err := tx.CreateConversation(ctx, &domain.Conversation{
				ConversationID: conversationID,
				SessionID:      ev.SessionID,
				UserID:         ev.UserID,
				StartTime:      ev.Time,
				Status:         domain.ConversationStatusActive,
			}); err != nil {
				return Outcome{}, err
			}
		}
	}

	if err := tx.InsertMessage(ctx, &domain.Message{
		MessageID:      uuid.New().String(),
		ConversationID: conversationID,
		UserID:         ev.UserID,
		Role:           domain.MessageRoleUser,
		Content:        p.Question,
		Timestamp:      ev.Time,
	}); err != nil {
		return Outcome{}, err
	}
	if err := tx.BumpUserMessages(ctx, ev.UserID); err != nil {
		return Outcome{}, err
	}

	return Outcome{Status: StatusRecorded, ConversationID: conversationID}, nil
}

func applyBotResponse(ctx context.Context, tx store.Tx, ev domain.Event, p domain.BotResponsePayload) (Outcome, error) {
	conv, err := tx.ActiveConversation(ctx, ev.SessionID)
	if err != nil {
		return Outcome{}, err
	}
	if conv == nil {
		// A response with no conversation to attach to is dropped, not an
		// error: the user-touch above still commits.
		return Outcome{Status: StatusSkippedNoActiveConversation}, nil
	}

	if err := tx.InsertMessage(ctx, &domain.Message{
		MessageID:      uuid.New().String(),
		ConversationID: conv.ConversationID,
		UserID:         ev.UserID,
		Role:           domain.MessageRoleBot,
		Content:        p.Response,
		Timestamp:      ev.Time,
	}); err != nil {
		return Outcome{}, err
	}

	// One answered question is one session message.
	if err := tx.BumpSessionMessages(ctx, ev.SessionID, ev.Time); err != nil {
		return Outcome{}, err
	}

	return Outcome{Status: StatusRecorded, ConversationID: conv.ConversationID}, nil
}

func applySessionEnd(ctx context.Context, tx store.Tx, ev domain.Event) (Outcome, error) {
	if err := tx.CompleteSession(ctx, ev.SessionID, ev.Time); err != nil {
		return Outcome{}, err
	}

	conv, err := tx.ActiveConversation(ctx, ev.SessionID)
	if err != nil {
		return Outcome{}, err
	}
	if conv == nil {
		// Nothing to complete; the user still goes inactive.
		if err := tx.DeactivateUser(ctx, ev.UserID, ev.Time); err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusRecorded}, nil
	}

	duration, err := tx.CompleteConversation(ctx, conv.ConversationID, ev.Time)
	if err != nil {
		return Outcome{}, err
	}
	if err := tx.FinishUser(ctx, ev.UserID, ev.Time, duration); err != nil {
		return Outcome{}, err
	}

	return Outcome{Status: StatusRecorded, ConversationID: conv.ConversationID}, nil
}
