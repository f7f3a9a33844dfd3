package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrConnectionClosed is returned by Enqueue once the write pump is
// gone or its buffer is full.
var ErrConnectionClosed = errors.New("connection closed")

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is the middleman between one websocket connection and the
// router. It implements Sender so the registry can deliver through it.
type Client struct {
	id     string
	userID string

	conn   *websocket.Conn
	send   chan WriteData
	router *Router
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, router *Router, logger *zap.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan WriteData, 256),
		router: router,
		logger: logger,
	}
}

// ID returns the connection id assigned at upgrade time.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated identity bound to the connection.
func (c *Client) UserID() string { return c.userID }

// Enqueue hands a text frame to the write pump. A full buffer counts
// as a failed delivery rather than blocking the dispatch path.
func (c *Client) Enqueue(payload []byte) error {
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// EnqueueBinary hands a binary frame (synthesized audio) to the write
// pump.
func (c *Client) EnqueueBinary(payload []byte) error {
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: payload})
}

func (c *Client) enqueue(data WriteData) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.mu.Unlock()

	select {
	case c.send <- data:
		return nil
	default:
		return ErrConnectionClosed
	}
}

// IsOpen reports whether the transport can still accept frames.
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// closeWithReason sends a close control frame before dropping the
// transport, used for authentication failures.
func (c *Client) closeWithReason(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	c.markClosed()
	c.conn.Close()
}

// Serve upgrades the request and runs the connection's pumps. token is
// the bearer token extracted pre-upgrade; it is re-verified before the
// connection is registered.
func Serve(w http.ResponseWriter, r *http.Request, token string, router *Router, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(conn, router, logger)
	go client.writePump()

	if !router.HandleOpen(client, token) {
		return nil
	}
	go client.readPump()
	return nil
}

// readPump pumps inbound frames from the websocket connection to the
// router. There is exactly one reader per connection.
func (c *Client) readPump() {
	defer func() {
		c.markClosed()
		c.router.HandleClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.router.HandleFrame(c, message)
		case websocket.BinaryMessage:
			c.router.HandleBinary(c, message)
		default:
			c.logger.Warn("received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound frames to the websocket connection. There
// is exactly one writer per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markClosed()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
