package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn wraps a websocket connection with serialized writes. The reply for a
// turn and the keepalive pinger both write, so every write goes through the
// mutex.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *conn) close() {
	c.ws.Close()
}
