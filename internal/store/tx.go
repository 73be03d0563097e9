package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatlytics/internal/domain"
)

// sqliteTx implements Tx over a live *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

// EnsureUser creates the user row if it does not exist (counters zero,
// active) and touches last_active_at either way. The conflict-tolerant
// insert means two concurrent first events for the same id both succeed.
func (t *sqliteTx) EnsureUser(ctx context.Context, userID string, now time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (user_id, first_seen_at, last_active_at, is_active, user_type)
		 VALUES (?, ?, ?, TRUE, 'new')
		 ON CONFLICT(user_id) DO NOTHING`, userID, now, now)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`UPDATE users SET last_active_at = ? WHERE user_id = ?`, now, userID)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func (t *sqliteTx) BumpUserSessions(ctx context.Context, userID, pageURL string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users
		 SET total_sessions = total_sessions + 1, is_active = TRUE, last_page_url = ?
		 WHERE user_id = ?`, pageURL, userID)
	if err != nil {
		return fmt.Errorf("bump user sessions: %w", err)
	}
	return nil
}

func (t *sqliteTx) BumpUserMessages(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET total_messages = total_messages + 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("bump user messages: %w", err)
	}
	return nil
}

func (t *sqliteTx) MarkUserReturning(ctx context.Context, userID string, now time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET last_active_at = ?, user_type = 'returning' WHERE user_id = ?`,
		now, userID)
	if err != nil {
		return fmt.Errorf("mark user returning: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeactivateUser(ctx context.Context, userID string, now time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, last_active_at = ? WHERE user_id = ?`,
		now, userID)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

// FinishUser folds a completed conversation into the user's totals and
// deactivates the user.
func (t *sqliteTx) FinishUser(ctx context.Context, userID string, now time.Time, durationSeconds int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users
		 SET is_active = FALSE,
		     last_active_at = ?,
		     total_duration = total_duration + ?,
		     total_conversations = total_conversations + 1
		 WHERE user_id = ?`, now, durationSeconds, userID)
	if err != nil {
		return fmt.Errorf("finish user: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return scanSession(t.tx.QueryRowContext(ctx,
		`SELECT session_id, user_id, start_time, end_time, duration, status,
		        page_url, message_count, last_message_time, location_data
		 FROM sessions WHERE session_id = ?`, sessionID))
}

// CreateSession inserts a session, tolerating a concurrent insert of the
// same id.
func (t *sqliteTx) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, start_time, status, page_url)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		session.SessionID, session.UserID, session.StartTime,
		string(session.Status), session.PageURL)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CompleteSession ends a session, computing its duration exactly once. A
// session already completed is left untouched.
func (t *sqliteTx) CompleteSession(ctx context.Context, sessionID string, end time.Time) error {
	var start time.Time
	err := t.tx.QueryRowContext(ctx,
		`SELECT start_time FROM sessions WHERE session_id = ? AND status = 'active'`,
		sessionID).Scan(&start)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session start: %w", err)
	}

	_, err = t.tx.ExecContext(ctx,
		`UPDATE sessions SET end_time = ?, duration = ?, status = 'completed'
		 WHERE session_id = ? AND status = 'active'`,
		end, floorSeconds(start, end), sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// ReapSession force-closes an abandoned session. The duration is left as
// previously computed, zero if it was never set.
func (t *sqliteTx) ReapSession(ctx context.Context, sessionID string, end time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE sessions SET end_time = ?, status = 'completed'
		 WHERE session_id = ? AND status = 'active'`, end, sessionID)
	if err != nil {
		return fmt.Errorf("reap session: %w", err)
	}
	return nil
}

func (t *sqliteTx) BumpSessionMessages(ctx context.Context, sessionID string, now time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1, last_message_time = ?
		 WHERE session_id = ?`, now, sessionID)
	if err != nil {
		return fmt.Errorf("bump session messages: %w", err)
	}
	return nil
}

// ActiveConversation resolves "the" conversation for a session: the active
// one with the most recent start time. Returns nil if none is active.
func (t *sqliteTx) ActiveConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	return scanConversation(t.tx.QueryRowContext(ctx,
		`SELECT conversation_id, session_id, user_id, start_time, end_time, duration, status
		 FROM conversations
		 WHERE session_id = ? AND status = 'active'
		 ORDER BY start_time DESC
		 LIMIT 1`, sessionID))
}

func (t *sqliteTx) CreateConversation(ctx context.Context, conversation *domain.Conversation) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, session_id, user_id, start_time, status)
		 VALUES (?, ?, ?, ?, ?)`,
		conversation.ConversationID, conversation.SessionID, conversation.UserID,
		conversation.StartTime, string(conversation.Status))
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// CompleteConversation ends a conversation and returns the stored duration
// read back from the row. Completing an already-completed conversation is a
// no-op returning its existing duration.
func (t *sqliteTx) CompleteConversation(ctx context.Context, conversationID string, end time.Time) (int64, error) {
	var start time.Time
	err := t.tx.QueryRowContext(ctx,
		`SELECT start_time FROM conversations WHERE conversation_id = ? AND status = 'active'`,
		conversationID).Scan(&start)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("read conversation start: %w", err)
	}
	if err == nil {
		_, err = t.tx.ExecContext(ctx,
			`UPDATE conversations SET end_time = ?, duration = ?, status = 'completed'
			 WHERE conversation_id = ? AND status = 'active'`,
			end, floorSeconds(start, end), conversationID)
		if err != nil {
			return 0, fmt.Errorf("complete conversation: %w", err)
		}
	}

	var duration int64
	err = t.tx.QueryRowContext(ctx,
		`SELECT duration FROM conversations WHERE conversation_id = ?`,
		conversationID).Scan(&duration)
	if err != nil {
		return 0, fmt.Errorf("read back duration: %w", err)
	}
	return duration, nil
}

func (t *sqliteTx) InsertMessage(ctx context.Context, message *domain.Message) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, user_id, message_type, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.ConversationID, message.UserID,
		string(message.Role), message.Content, message.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// TimedOutSessions returns active sessions whose last activity (last
// message, or start if none) is older than cutoff.
func (t *sqliteTx) TimedOutSessions(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT session_id, user_id, start_time, end_time, duration, status,
		        page_url, message_count, last_message_time, location_data
		 FROM sessions
		 WHERE status = 'active' AND COALESCE(last_message_time, start_time) < ?
		 ORDER BY start_time
		 LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select timed out sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		var endTime, lastMsg sql.NullTime
		var pageURL, location sql.NullString
		if err := rows.Scan(&sess.SessionID, &sess.UserID, &sess.StartTime, &endTime,
			&sess.Duration, &sess.Status, &pageURL, &sess.MessageCount, &lastMsg, &location); err != nil {
			return nil, err
		}
		if endTime.Valid {
			et := endTime.Time
			sess.EndTime = &et
		}
		if lastMsg.Valid {
			lt := lastMsg.Time
			sess.LastMessageTime = &lt
		}
		sess.PageURL = pageURL.String
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
