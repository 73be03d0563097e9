package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatlytics/internal/domain"
)

// OverviewReport is the top-level analytics projection.
type OverviewReport struct {
	TotalUsers        int64                 `json:"total_users"`
	TotalSessions     int64                 `json:"total_sessions"`
	TotalQuestions    int64                 `json:"total_questions"`
	TotalChatbotOpens int64                 `json:"total_chatbot_opens"`
	Users             map[string]UserDetail `json:"users"`
}

// UserDetail is one user's aggregates plus session history.
type UserDetail struct {
	UserID             string          `json:"user_id"`
	Sessions           int64           `json:"sessions"`
	TotalMessages      int64           `json:"total_messages"`
	TotalDuration      int64           `json:"total_duration"`
	TotalConversations int64           `json:"total_conversations"`
	LastActive         time.Time       `json:"last_active"`
	CreatedAt          time.Time       `json:"created_at"`
	IsActive           bool            `json:"is_active"`
	SessionHistory     []SessionDetail `json:"session_history"`
}

// SessionDetail is one session with its recorded events.
type SessionDetail struct {
	SessionID    string           `json:"session_id"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	Duration     int64            `json:"duration"`
	MessageCount int64            `json:"message_count"`
	Status       string           `json:"status"`
	Events       []domain.Message `json:"events"`
}

// UserReport is the per-user drill-down.
type UserReport struct {
	UserDetail
	UserType string `json:"user_type"`
}

// SessionsReport summarizes session activity.
type SessionsReport struct {
	ActiveSessions  int64            `json:"active_sessions"`
	TodaySessions   int64            `json:"today_sessions"`
	AverageDuration float64          `json:"average_duration"`
	RecentSessions  []domain.Session `json:"recent_sessions"`
}

// ConversationsReport summarizes conversation outcomes.
type ConversationsReport struct {
	TotalConversations     int64                `json:"total_conversations"`
	ActiveConversations    int64                `json:"active_conversations"`
	CompletedConversations int64                `json:"completed_conversations"`
	HandoverConversations  int64                `json:"handover_conversations"`
	AverageDuration        float64              `json:"average_duration"`
	RecentConversations    []ConversationDetail `json:"recent_conversations"`
}

// ConversationDetail is one conversation with its user-message count.
type ConversationDetail struct {
	domain.Conversation
	MessageCount int64 `json:"message_count"`
}

// MessagesReport summarizes message volume by role.
type MessagesReport struct {
	TotalMessages  int64            `json:"total_messages"`
	UserMessages   int64            `json:"user_messages"`
	BotMessages    int64            `json:"bot_messages"`
	SystemMessages int64            `json:"system_messages"`
	RecentMessages []domain.Message `json:"recent_messages"`
}

// Overview builds the top-level analytics projection.
func (s *SQLiteStore) Overview(ctx context.Context) (*OverviewReport, error) {
	report := &OverviewReport{Users: make(map[string]UserDetail)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(total_sessions), 0),
		        COALESCE(SUM(total_messages), 0),
		        COALESCE(SUM(total_sessions > 0), 0)
		 FROM users`).Scan(&report.TotalUsers, &report.TotalSessions,
		&report.TotalQuestions, &report.TotalChatbotOpens)
	if err != nil {
		return nil, fmt.Errorf("overview totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, first_seen_at, last_active_at, total_sessions, total_messages,
		        total_duration, total_conversations, is_active
		 FROM users ORDER BY last_active_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("overview users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var d UserDetail
		if err := rows.Scan(&d.UserID, &d.CreatedAt, &d.LastActive, &d.Sessions,
			&d.TotalMessages, &d.TotalDuration, &d.TotalConversations, &d.IsActive); err != nil {
			return nil, err
		}
		report.Users[d.UserID] = d
		userIDs = append(userIDs, d.UserID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range userIDs {
		history, err := s.sessionHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		d := report.Users[id]
		d.SessionHistory = history
		report.Users[id] = d
	}

	return report, nil
}

// UserReport builds the drill-down for one user. Returns
// domain.ErrUserNotFound for unknown ids.
func (s *SQLiteStore) UserReport(ctx context.Context, userID string) (*UserReport, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.sessionHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserReport{
		UserDetail: UserDetail{
			UserID:             u.UserID,
			Sessions:           u.TotalSessions,
			TotalMessages:      u.TotalMessages,
			TotalDuration:      u.TotalDuration,
			TotalConversations: u.TotalConversations,
			LastActive:         u.LastActiveAt,
			CreatedAt:          u.FirstSeenAt,
			IsActive:           u.IsActive,
			SessionHistory:     history,
		},
		UserType: string(u.UserType),
	}, nil
}

// sessionHistory lists a user's sessions, newest first, each with the
// messages of its conversations as the event trail.
func (s *SQLiteStore) sessionHistory(ctx context.Context, userID string) ([]SessionDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, start_time, end_time, duration, message_count, status
		 FROM sessions WHERE user_id = ? ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	defer rows.Close()

	var details []SessionDetail
	for rows.Next() {
		var d SessionDetail
		var endTime sql.NullTime
		if err := rows.Scan(&d.SessionID, &d.StartTime, &endTime, &d.Duration,
			&d.MessageCount, &d.Status); err != nil {
			return nil, err
		}
		if endTime.Valid {
			t := endTime.Time
			d.EndTime = &t
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range details {
		events, err := s.sessionMessages(ctx, details[i].SessionID)
		if err != nil {
			return nil, err
		}
		details[i].Events = events
	}
	return details, nil
}

// sessionMessages lists all messages across a session's conversations in
// timestamp order.
func (s *SQLiteStore) sessionMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.message_id, m.conversation_id, m.user_id, m.message_type, m.content, m.timestamp
		 FROM messages m
		 JOIN conversations c ON c.conversation_id = m.conversation_id
		 WHERE c.session_id = ?
		 ORDER BY m.timestamp`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SessionsReport summarizes session activity. startOfDay bounds the
// "today" count, computed by the caller to keep wall-clock policy out of
// the store.
func (s *SQLiteStore) SessionsReport(ctx context.Context, startOfDay time.Time) (*SessionsReport, error) {
	report := &SessionsReport{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(status = 'active'), 0),
		        COALESCE(SUM(start_time >= ?), 0),
		        COALESCE(AVG(CASE WHEN status = 'completed' THEN duration END), 0)
		 FROM sessions`, startOfDay).Scan(&report.ActiveSessions,
		&report.TodaySessions, &report.AverageDuration)
	if err != nil {
		return nil, fmt.Errorf("sessions totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, start_time, end_time, duration, status,
		        page_url, message_count, last_message_time, location_data
		 FROM sessions ORDER BY start_time DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sess domain.Session
		var endTime, lastMsg sql.NullTime
		var pageURL, location sql.NullString
		if err := rows.Scan(&sess.SessionID, &sess.UserID, &sess.StartTime, &endTime,
			&sess.Duration, &sess.Status, &pageURL, &sess.MessageCount, &lastMsg, &location); err != nil {
			return nil, err
		}
		if endTime.Valid {
			t := endTime.Time
			sess.EndTime = &t
		}
		if lastMsg.Valid {
			t := lastMsg.Time
			sess.LastMessageTime = &t
		}
		sess.PageURL = pageURL.String
		report.RecentSessions = append(report.RecentSessions, sess)
	}
	return report, rows.Err()
}

// ConversationsReport summarizes conversation outcomes.
func (s *SQLiteStore) ConversationsReport(ctx context.Context) (*ConversationsReport, error) {
	report := &ConversationsReport{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'active'), 0),
		        COALESCE(SUM(status = 'completed'), 0),
		        COALESCE(SUM(status = 'handover'), 0),
		        COALESCE(AVG(CASE WHEN status != 'active' THEN duration END), 0)
		 FROM conversations`).Scan(&report.TotalConversations,
		&report.ActiveConversations, &report.CompletedConversations,
		&report.HandoverConversations, &report.AverageDuration)
	if err != nil {
		return nil, fmt.Errorf("conversations totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.conversation_id, c.session_id, c.user_id, c.start_time, c.end_time,
		        c.duration, c.status,
		        (SELECT COUNT(*) FROM messages m
		          WHERE m.conversation_id = c.conversation_id AND m.message_type = 'user')
		 FROM conversations c
		 ORDER BY c.start_time DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d ConversationDetail
		var endTime sql.NullTime
		if err := rows.Scan(&d.ConversationID, &d.SessionID, &d.UserID, &d.StartTime,
			&endTime, &d.Duration, &d.Status, &d.MessageCount); err != nil {
			return nil, err
		}
		if endTime.Valid {
			t := endTime.Time
			d.EndTime = &t
		}
		report.RecentConversations = append(report.RecentConversations, d)
	}
	return report, rows.Err()
}

// MessagesReport summarizes message volume by role.
func (s *SQLiteStore) MessagesReport(ctx context.Context) (*MessagesReport, error) {
	report := &MessagesReport{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(message_type = 'user'), 0),
		        COALESCE(SUM(message_type = 'bot'), 0),
		        COALESCE(SUM(message_type = 'system'), 0)
		 FROM messages`).Scan(&report.TotalMessages, &report.UserMessages,
		&report.BotMessages, &report.SystemMessages)
	if err != nil {
		return nil, fmt.Errorf("messages totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, conversation_id, user_id, message_type, content, timestamp
		 FROM messages ORDER BY timestamp DESC LIMIT 20`)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		report.RecentMessages = append(report.RecentMessages, m)
	}
	return report, rows.Err()
}
