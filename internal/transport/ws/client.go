// Package ws serves the push side of synchronization over WebSocket.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heartmarshall/safety-pulse/internal/realtime"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

var errClientClosed = errors.New("client closed")

// Client is one WebSocket connection. All writes go through the send queue
// and a single writer goroutine.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration

	mu       sync.Mutex
	identity ctxutil.Identity
}

func newClient(id string, conn *websocket.Conn, queue int, writeTimeout, pingInterval time.Duration) *Client {
	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, queue),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Deliver queues payload without blocking.
func (c *Client) Deliver(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return realtime.ErrQueueFull
	}
}

// Close stops the writer, which closes the connection.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) setIdentity(id ctxutil.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// Identity returns the identity set by an auth message, if any.
func (c *Client) Identity() (ctxutil.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.identity.ID != ""
}

// writePump drains the send queue and sends heartbeat pings until the
// client is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.writeTimeout))
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}
