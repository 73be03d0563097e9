package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chatlytics/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the
// schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single pooled connection keeps a plain :memory: DSN on the database
	// the migration ran against and avoids SQLITE_BUSY between concurrent
	// writers on the file-backed path.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

// migrate applies the schema. Statements are idempotent.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			first_seen_at DATETIME NOT NULL,
			last_active_at DATETIME NOT NULL,
			total_sessions INTEGER NOT NULL DEFAULT 0,
			total_messages INTEGER NOT NULL DEFAULT 0,
			total_duration INTEGER NOT NULL DEFAULT 0,
			total_conversations INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_page_url TEXT,
			user_type TEXT NOT NULL DEFAULT 'new'
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			duration INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			page_url TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			last_message_time DATETIME,
			location_data TEXT,
			FOREIGN KEY (user_id) REFERENCES users(user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			duration INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, status, start_time)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			message_type TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS lead_analytics (
			lead_id TEXT PRIMARY KEY,
			lead_type TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS human_handover (
			handover_id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT,
			session_id TEXT,
			requested_at DATETIME NOT NULL,
			issues TEXT,
			other_text TEXT,
			support_option TEXT,
			last_message TEXT,
			status TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE TABLE IF NOT EXISTS chatbot_close_events (
			close_id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT,
			session_id TEXT,
			closed_at DATETIME NOT NULL,
			time_spent_seconds REAL NOT NULL DEFAULT 0,
			last_user_message TEXT,
			last_bot_message TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(&sqliteTx{tx: sqlTx})
	return err
}

// GetUser retrieves a user by id. Returns domain.ErrUserNotFound if absent.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, first_seen_at, last_active_at, total_sessions, total_messages,
		        total_duration, total_conversations, is_active, last_page_url, user_type
		 FROM users WHERE user_id = ?`, userID))
}

// GetSession retrieves a session by id. Returns nil if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, start_time, end_time, duration, status,
		        page_url, message_count, last_message_time, location_data
		 FROM sessions WHERE session_id = ?`, sessionID))
}

// GetConversation retrieves a conversation by id. Returns nil if absent.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx,
		`SELECT conversation_id, session_id, user_id, start_time, end_time, duration, status
		 FROM conversations WHERE conversation_id = ?`, conversationID))
}

// ListMessages returns a conversation's messages in timestamp order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, conversation_id, user_id, message_type, content, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY timestamp`, conversationID)
	if err != nil {
		return nil, err
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

// UpdateSessionPage records the page the session is currently on.
func (s *SQLiteStore) UpdateSessionPage(ctx context.Context, sessionID, pageURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET page_url = ? WHERE session_id = ?`, pageURL, sessionID)
	return err
}

// UpdateSessionLocation stores the client-reported location payload.
func (s *SQLiteStore) UpdateSessionLocation(ctx context.Context, sessionID string, location json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET location_data = ? WHERE session_id = ?`, string(location), sessionID)
	return err
}

// ReassignSession re-keys a session to an identified user.
func (s *SQLiteStore) ReassignSession(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET user_id = ? WHERE session_id = ?`, userID, sessionID)
	return err
}

// CreateLead inserts a captured lead.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *domain.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_analytics (lead_id, lead_type, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		lead.LeadID, lead.LeadType, lead.Name, lead.CreatedAt, lead.UpdatedAt)
	return err
}

// ListLeads returns the most recent leads.
func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]domain.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lead_id, lead_type, name, created_at, updated_at
		 FROM lead_analytics ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var l domain.Lead
		if err := rows.Scan(&l.LeadID, &l.LeadType, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// CountLeads returns the total number of captured leads.
func (s *SQLiteStore) CountLeads(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lead_analytics`).Scan(&n)
	return n, err
}

// CreateHandover inserts a pending handover request and returns its id.
func (s *SQLiteStore) CreateHandover(ctx context.Context, h *domain.HandoverRequest) (int64, error) {
	issues, err := json.Marshal(h.Issues)
	if err != nil {
		return 0, fmt.Errorf("marshal issues: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO human_handover
		   (user_id, session_id, requested_at, issues, other_text, support_option, last_message, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.SessionID, h.RequestedAt, string(issues), h.OtherText,
		h.SupportOption, h.LastMessage, string(domain.HandoverStatusPending))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListHandovers returns the most recent handover requests.
func (s *SQLiteStore) ListHandovers(ctx context.Context, limit int) ([]domain.HandoverRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT handover_id, user_id, session_id, requested_at, issues, other_text,
		        support_option, last_message, status
		 FROM human_handover ORDER BY requested_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handovers []domain.HandoverRequest
	for rows.Next() {
		var h domain.HandoverRequest
		var issues sql.NullString
		if err := rows.Scan(&h.HandoverID, &h.UserID, &h.SessionID, &h.RequestedAt,
			&issues, &h.OtherText, &h.SupportOption, &h.LastMessage, &h.Status); err != nil {
			return nil, err
		}
		if issues.Valid && issues.String != "" {
			if err := json.Unmarshal([]byte(issues.String), &h.Issues); err != nil {
				return nil, fmt.Errorf("unmarshal issues: %w", err)
			}
		}
		handovers = append(handovers, h)
	}
	return handovers, rows.Err()
}

// CountHandovers returns the total number of handover requests.
func (s *SQLiteStore) CountHandovers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM human_handover`).Scan(&n)
	return n, err
}

// ResolveHandover transitions a handover request from pending to resolved.
func (s *SQLiteStore) ResolveHandover(ctx context.Context, handoverID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE human_handover SET status = ? WHERE handover_id = ? AND status = ?`,
		string(domain.HandoverStatusResolved), handoverID, string(domain.HandoverStatusPending))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("handover %d not pending", handoverID)
	}
	return nil
}

// CreateCloseEvent records a chat-widget close.
func (s *SQLiteStore) CreateCloseEvent(ctx context.Context, e *domain.CloseEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chatbot_close_events
		   (user_id, session_id, closed_at, time_spent_seconds, last_user_message, last_bot_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.SessionID, e.ClosedAt, e.TimeSpentSeconds, e.LastUserMessage, e.LastBotMessage)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var lastPage sql.NullString
	err := row.Scan(&u.UserID, &u.FirstSeenAt, &u.LastActiveAt, &u.TotalSessions,
		&u.TotalMessages, &u.TotalDuration, &u.TotalConversations, &u.IsActive,
		&lastPage, &u.UserType)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.LastPageURL = lastPage.String
	return &u, nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var sess domain.Session
	var endTime, lastMsg sql.NullTime
	var pageURL, location sql.NullString
	err := row.Scan(&sess.SessionID, &sess.UserID, &sess.StartTime, &endTime,
		&sess.Duration, &sess.Status, &pageURL, &sess.MessageCount, &lastMsg, &location)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
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
	if location.Valid && location.String != "" {
		sess.LocationData = json.RawMessage(location.String)
	}
	return &sess, nil
}

func scanConversation(row *sql.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	var endTime sql.NullTime
	err := row.Scan(&c.ConversationID, &c.SessionID, &c.UserID, &c.StartTime,
		&endTime, &c.Duration, &c.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	return &c, nil
}

// floorSeconds is the whole-second duration between start and end.
func floorSeconds(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
