package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Client is one live socket connection for one user. Writes serialize on
// writeMu, so events pushed to a connection go out in send order.
type Client struct {
	connID  string
	userID  string
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// ConnID returns the connection id registered with the presence registry.
func (c *Client) ConnID() string {
	return c.connID
}

// UserID returns the owning user.
func (c *Client) UserID() string {
	return c.userID
}

// Send writes one event to the connection.
func (c *Client) Send(ev Event) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

func (c *Client) close() {
	c.closed.Store(true)
	_ = c.conn.Close()
}
