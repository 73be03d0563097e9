// Package history holds the in-memory per-session record of recent
// question/answer turns. It is a non-authoritative shadow of the message
// store: it can be discarded at any time without data loss.
package history

import "sync"

// Turn is one question/answer pair.
type Turn struct {
	Question string
	Answer   string
}

// Cache maps session ids to bounded, ordered turn lists. Each session has
// its own lock so concurrent connections never block each other; the outer
// lock only guards the map itself.
type Cache struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[string]*sessionHistory
}

type sessionHistory struct {
	mu    sync.Mutex
	turns []Turn
}

// New creates a Cache keeping at most maxTurns turns per session.
func New(maxTurns int) *Cache {
	return &Cache{
		maxTurns: maxTurns,
		sessions: make(map[string]*sessionHistory),
	}
}

// Register creates an empty history for a session. Registering an existing
// session is a no-op.
func (c *Cache) Register(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionID]; !ok {
		c.sessions[sessionID] = &sessionHistory{}
	}
}

// Append adds a turn, evicting the oldest beyond the bound.
func (c *Cache) Append(sessionID string, turn Turn) {
	h := c.get(sessionID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	if len(h.turns) > c.maxTurns {
		h.turns = h.turns[len(h.turns)-c.maxTurns:]
	}
}

// Replace overwrites a session's history, e.g. with client-supplied turns,
// keeping only the newest maxTurns.
func (c *Cache) Replace(sessionID string, turns []Turn) {
	if len(turns) > c.maxTurns {
		turns = turns[len(turns)-c.maxTurns:]
	}
	h := c.get(sessionID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append([]Turn(nil), turns...)
}

// Turns returns a copy of a session's turns, oldest first.
func (c *Cache) Turns(sessionID string) []Turn {
	c.mu.RLock()
	h, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.turns...)
}

// Len returns the number of turns cached for a session.
func (c *Cache) Len(sessionID string) int {
	c.mu.RLock()
	h, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Remove drops a session's history.
func (c *Cache) Remove(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// Sessions returns the number of sessions currently cached.
func (c *Cache) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Cache) get(sessionID string) *sessionHistory {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.sessions[sessionID]
	if !ok {
		h = &sessionHistory{}
		c.sessions[sessionID] = h
	}
	return h
}
