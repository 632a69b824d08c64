package socket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	sendBufferSize = 256
)

// Client is one live websocket connection. The read pump dispatches inbound
// events in arrival order; the write pump drains the buffered send channel.
type Client struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	router   *Router
	log      *log.Entry

	mu     sync.Mutex
	closed bool
}

func newClient(id string, identity domain.Identity, conn *websocket.Conn, registry *Registry, router *Router, logger *log.Logger) *Client {
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		registry: registry,
		router:   router,
		log: logger.WithFields(log.Fields{
			"conn_id": id,
			"user_id": identity.ID,
		}),
	}
}

// ConnID returns the server-assigned connection id.
func (c *Client) ConnID() string { return c.id }

// Identity returns the identity resolved at handshake time.
func (c *Client) Identity() domain.Identity { return c.identity }

// Enqueue offers a frame to the write pump without blocking. A full buffer
// or a closed connection drops the frame; delivery is best-effort.
func (c *Client) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// sendEvent encodes and queues a frame for this connection only.
func (c *Client) sendEvent(kind string, payload any) {
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		c.log.Errorf("encode %s: %v", kind, err)
		return
	}
	c.Enqueue(frame)
}

func (c *Client) sendError(message string) {
	c.sendEvent(evtError, errorEvent{Message: message})
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

// readPump reads frames until the connection drops and dispatches each one.
// Release runs exactly once here, before the connection is torn down, so no
// later broadcast can target this connection.
func (c *Client) readPump() {
	defer func() {
		c.registry.Release(c.id)
		c.close()
		c.log.Info("socket disconnected")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnf("socket read: %v", err)
			}
			return
		}
		c.router.Dispatch(c, frame)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
