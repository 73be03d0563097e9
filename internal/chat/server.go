// Package chat runs the real-time websocket orchestrator: one serving loop
// per live connection, translating widget frames into interaction events and
// answered turns.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"chatlytics/internal/analytics"
	"chatlytics/internal/domain"
	"chatlytics/internal/geo"
	"chatlytics/internal/history"
	"chatlytics/internal/store"
)

// Options hold the per-connection timing knobs.
type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	AnswerTimeout  time.Duration
	MaxMessageSize int64
}

// Server upgrades websocket connections and drives the conversation loop.
type Server struct {
	opts     Options
	recorder *analytics.Recorder
	store    store.Store
	cache    *history.Cache
	answerer *Answerer
	geo      *geo.Geocoder
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a Server. geocoder may be nil when reverse geocoding is
// disabled.
func NewServer(opts Options, rec *analytics.Recorder, st store.Store, cache *history.Cache, ans *Answerer, geocoder *geo.Geocoder, log *slog.Logger) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = (opts.ReadTimeout * 9) / 10
	}
	if opts.AnswerTimeout <= 0 {
		opts.AnswerTimeout = 60 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 * 1024
	}
	return &Server{
		opts:     opts,
		recorder: rec,
		store:    st,
		cache:    cache,
		answerer: ans,
		geo:      geocoder,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The widget is embedded on customer pages.
				return true
			},
		},
	}
}

// RegisterRoutes mounts the websocket endpoint and the synchronous query
// endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/chat/ws", s.HandleWebSocket)
	e.GET("/chat/ws/chat", s.HandleWebSocket)
	e.POST("/chat/query", s.HandleQuery)
}

// HandleWebSocket upgrades the request and serves the connection until the
// client disconnects.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return err
	}
	ws.SetReadLimit(s.opts.MaxMessageSize)

	s.serve(newConn(ws, s.opts.WriteTimeout), c.RealIP())
	return nil
}

// session tracks the identity and counters for one live connection.
type session struct {
	sessionID string
	userID    string
	startedAt time.Time
	pageURL   string
	questions int
	answers   int
}

func (s *Server) serve(c *conn, remoteAddr string) {
	sess := &session{
		sessionID: newSessionID(),
		userID:    newUserID(),
		startedAt: time.Now().UTC(),
	}
	log := s.log.With("session_id", sess.sessionID)
	log.Info("connection opened", "remote_addr", remoteAddr, "user_id", sess.userID)

	s.cache.Register(sess.sessionID)

	// Event recording uses a detached context so a disconnect mid-turn never
	// cancels an in-flight transaction.
	s.recorder.Record(context.Background(), domain.Event{
		Kind:      domain.EventSessionStart,
		UserID:    sess.userID,
		SessionID: sess.sessionID,
		Time:      sess.startedAt,
		Payload:   domain.SessionStartPayload{PageURL: "unknown", RemoteAddr: remoteAddr},
	})

	done := make(chan struct{})
	go s.pingLoop(c, done)

	defer func() {
		close(done)
		c.close()
		s.finish(sess, log)
	}()

	c.ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))

		env, err := ParseEnvelope(data)
		if err != nil {
			log.Warn("rejected frame", "error", err)
			if werr := c.writeJSON(Reply{Error: err.Error(), Done: true}); werr != nil {
				return
			}
			continue
		}

		if !s.handleEnvelope(c, sess, env, log) {
			return
		}
	}
}

// handleEnvelope processes one valid frame. It returns false when the
// connection should be torn down because a write failed.
func (s *Server) handleEnvelope(c *conn, sess *session, env *Envelope, log *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AnswerTimeout)
	defer cancel()

	if env.PageURL != "" {
		// The session row is created lazily by the first question, so this
		// update is a no-op until then; pageURL is kept on the session state
		// and rides into the question event that creates the row.
		sess.pageURL = env.PageURL
		if err := s.store.UpdateSessionPage(ctx, sess.sessionID, env.PageURL); err != nil {
			log.Warn("page update failed", "error", err)
		}
	}

	if env.UserID != "" && env.UserID != sess.userID {
		s.identify(ctx, sess, env.UserID, log)
	}

	var locationContext string
	if env.UserLocation != nil {
		locationContext = s.recordLocation(ctx, sess, env.UserLocation, log)
	}

	if env.UserInput == "" {
		return true
	}

	if len(env.ChatHistory) > 0 {
		s.cache.Replace(sess.sessionID, turnsFromHistory(env.ChatHistory))
	}

	turnStart := time.Now().UTC()
	s.recorder.Record(context.Background(), domain.Event{
		Kind:      domain.EventQuestionAsked,
		UserID:    sess.userID,
		SessionID: sess.sessionID,
		Time:      turnStart,
		Payload: domain.QuestionAskedPayload{
			Question:          env.UserInput,
			ChatHistoryLength: s.cache.Len(sess.sessionID),
			Location:          env.UserLocation,
			PageURL:           sess.pageURL,
		},
	})
	sess.questions++

	answer, err := s.answerer.Answer(ctx, env.UserInput, s.cache.Turns(sess.sessionID), locationContext)
	if err != nil {
		log.Error("answer generation failed", "error", err)
		return c.writeJSON(Reply{Error: "Sorry, I could not process that. Please try again.", Done: true}) == nil
	}

	s.recorder.Record(context.Background(), domain.Event{
		Kind:      domain.EventBotResponse,
		UserID:    sess.userID,
		SessionID: sess.sessionID,
		Time:      time.Now().UTC(),
		Payload: domain.BotResponsePayload{
			Response:            answer,
			ResponseTimeSeconds: time.Since(turnStart).Seconds(),
		},
	})
	sess.answers++
	s.cache.Append(sess.sessionID, history.Turn{Question: env.UserInput, Answer: answer})

	return c.writeJSON(Reply{Text: answer, Done: true}) == nil
}

// identify switches the connection to a client-provided user id. The session
// row moves with it so later events land on the identified user.
func (s *Server) identify(ctx context.Context, sess *session, userID string, log *slog.Logger) {
	previous := sess.userID
	sess.userID = userID
	s.recorder.Record(context.Background(), domain.Event{
		Kind:      domain.EventUserIdentified,
		UserID:    userID,
		SessionID: sess.sessionID,
		Time:      time.Now().UTC(),
		Payload:   domain.UserIdentifiedPayload{PreviousID: previous},
	})
	if err := s.store.ReassignSession(ctx, sess.sessionID, userID); err != nil {
		log.Warn("session reassignment failed", "user_id", userID, "error", err)
	}
	log.Info("user identified", "user_id", userID, "previous_id", previous)
}

// recordLocation enriches the reported coordinates with a city name, stores
// the result on the session and returns a prompt-ready description.
func (s *Server) recordLocation(ctx context.Context, sess *session, loc *domain.Location, log *slog.Logger) string {
	var locationContext string
	if s.geo != nil {
		loc.City = s.geo.City(ctx, loc.Latitude, loc.Longitude)
		locationContext = s.geo.Context(ctx, loc.Latitude, loc.Longitude)
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		log.Warn("location marshal failed", "error", err)
		return locationContext
	}
	if err := s.store.UpdateSessionLocation(ctx, sess.sessionID, raw); err != nil {
		log.Warn("location update failed", "error", err)
	}
	return locationContext
}

// finish records session_end and drops the cached history. Runs after the
// socket is closed; failures here are logged and dropped.
func (s *Server) finish(sess *session, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AnswerTimeout)
	defer cancel()

	now := time.Now().UTC()
	s.recorder.Record(ctx, domain.Event{
		Kind:      domain.EventSessionEnd,
		UserID:    sess.userID,
		SessionID: sess.sessionID,
		Time:      now,
		Payload: domain.SessionEndPayload{
			TotalMessages:   sess.questions + sess.answers,
			DurationSeconds: now.Sub(sess.startedAt).Seconds(),
		},
	})
	s.cache.Remove(sess.sessionID)
	log.Info("connection closed", "user_id", sess.userID,
		"duration_seconds", int64(now.Sub(sess.startedAt).Seconds()), "messages", sess.questions+sess.answers)
}

func (s *Server) pingLoop(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func newSessionID() string {
	return uuid.New().String()
}

func newUserID() string {
	return "user_" + time.Now().UTC().Format("20060102150405") + "_" + uuid.New().String()[:8]
}
