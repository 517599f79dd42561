// Package websocket is the live-connection transport: it owns the
// gorilla connection, frames bytes in and out, and hands decoded events
// to the chat core. All room/presence logic lives behind the core; the
// transport never inspects payloads beyond decoding them.
package websocket

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tripwell/backoffice/internal/chat"
)

const (
	writeWait = 10 * time.Second

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512 * 1024 // 512KB
)

var errClientClosed = errors.New("client closed")

// Client is one live connection. Outbound frames go through a buffered
// channel drained by WritePump; Send never blocks the caller.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

func NewClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

// Send implements registry.Sink. A full buffer drops the frame rather
// than blocking a broadcast on one slow client; the durable message list
// is the recovery path.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errClientClosed
	case c.send <- payload:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close terminates the connection exactly once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// ReadPump decodes inbound frames into typed commands and dispatches them
// to the chat core. On exit it synchronously disconnects the session so
// no further broadcast targets this connection.
func (c *Client) ReadPump(svc *chat.Service) {
	defer func() {
		svc.Disconnect(context.Background(), c.ID)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read %s: %v", c.ID, err)
			}
			return
		}

		cmd, err := chat.DecodeCommand(raw)
		if err != nil {
			c.reportError(err)
			continue
		}

		if err := svc.Handle(context.Background(), c.ID, c.UserID, c, cmd); err != nil {
			log.Printf("websocket: handle %T for %s: %v", cmd, c.ID, err)
			c.reportError(err)
		}
	}
}

// WritePump drains the send buffer and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return

		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// Failures are reported to the originating connection only, never
// broadcast.
func (c *Client) reportError(err error) {
	if sendErr := c.Send(chat.EncodeError(err)); sendErr != nil {
		log.Printf("websocket: report error to %s: %v", c.ID, sendErr)
	}
}
