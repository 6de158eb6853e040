package ws

import (
	"sync"
)

// wireConn is the minimal surface the event layer needs from a websocket
// connection. *websocket.Conn satisfies it; tests substitute a recorder.
type wireConn interface {
	WriteJSON(v any) error
	Close() error
}

// Client is one authenticated websocket connection. A user with several
// tabs or devices has several Clients.
type Client struct {
	UserID   int64
	Username string

	mu   sync.Mutex
	conn wireConn
}

func NewClient(userID int64, username string, conn wireConn) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		conn:     conn,
	}
}

// Send writes one event envelope to the connection. Writes are serialized
// per connection; gorilla/websocket does not allow concurrent writers.
func (c *Client) Send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(outEnvelope{Event: event, Data: data})
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
