// Package client maintains one persistent socket to a movermarket server and
// buffers the notifications it pushes. Delivery is best-effort: anything
// emitted while the socket is down is gone, so the client's only job is to
// stay connected and re-register after every reconnect.
package client

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxBuffered bounds the notification list; the oldest entry is evicted first.
const maxBuffered = 100

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Notification mirrors the server's push shape.
type Notification struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId,omitempty"`
	ReviewID  string `json:"reviewId,omitempty"`
	Rating    int    `json:"rating,omitempty"`
	Target    string `json:"target"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type registerPayload struct {
	AccountID string `json:"accountId"`
	Role      string `json:"role"`
}

type Client struct {
	url  string
	log  *slog.Logger
	dial func(url string) (*websocket.Conn, error)

	wmu sync.Mutex // serializes writes on the socket

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	accountID string
	role      string
	notifs    []Notification
	closed    bool
	done      chan struct{}
}

func New(url string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url: url,
		log: log,
		dial: func(url string) (*websocket.Conn, error) {
			c, _, err := websocket.DefaultDialer.Dial(url, nil)
			return c, err
		},
		done: make(chan struct{}),
	}
}

// Start launches the connect/reconnect loop. It returns immediately.
func (c *Client) Start() {
	go c.run()
}

// Register records the identity sent to the server on every (re)connect. If
// the identity changes while connected, the current connection is torn down
// and the loop re-registers on the fresh one, since server-side memberships
// are keyed by the live connection.
func (c *Client) Register(accountID, role string) {
	c.mu.Lock()
	changed := c.accountID != "" && (c.accountID != accountID || c.role != role)
	c.accountID, c.role = accountID, role
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if !connected {
		return
	}
	if changed {
		_ = conn.Close() // run loop redials and registers the new identity
		return
	}
	if err := c.sendRegister(conn, accountID, role); err != nil {
		c.log.Warn("register send failed", "err", err)
		_ = conn.Close()
	}
}

// Connected reports the current transport state.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Notifications returns a copy of the buffered notifications, oldest first.
func (c *Client) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.notifs))
	copy(out, c.notifs)
	return out
}

// Clear empties the notification buffer.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifs = nil
}

// Close stops the reconnect loop and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	close(c.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) run() {
	backoff := initialBackoff
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, err := c.dial(c.url)
		if err != nil {
			c.log.Warn("dial failed", "url", c.url, "err", err)
			select {
			case <-c.done:
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.connected = true
		accountID, role := c.accountID, c.role
		c.mu.Unlock()

		// Reconnection is a brand-new connection server-side; the join must
		// be repeated every time.
		if accountID != "" {
			if err := c.sendRegister(conn, accountID, role); err != nil {
				c.log.Warn("register send failed", "err", err)
			}
		}

		c.readLoop(conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("socket read", "err", err)
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "err", err)
			continue
		}
		if msg.Type != "notification" {
			continue
		}
		var n Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			c.log.Warn("invalid notification", "err", err)
			continue
		}
		c.append(n)
	}
}

func (c *Client) append(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifs = append(c.notifs, n)
	if len(c.notifs) > maxBuffered {
		c.notifs = c.notifs[len(c.notifs)-maxBuffered:]
	}
}

func (c *Client) sendRegister(conn *websocket.Conn, accountID, role string) error {
	data, err := json.Marshal(registerPayload{AccountID: accountID, Role: role})
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(wsMessage{Type: "register-user", Data: data})
}
