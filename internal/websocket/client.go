package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	requestWait    = 30 * time.Second
	maxMessageSize = 256 * 1024
	sendBuffer     = 256
)

var ErrClientGone = errors.New("websocket client is gone")

// Client is one chat connection. It carries a single turn: the first
// client frame is the request and every event goes back as one frame.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	// UserID is uuid.Nil for guests.
	UserID uuid.UUID

	// Buffered channel of outbound frames.
	send chan []byte

	closeOnce sync.Once
	gone      chan struct{}
	logger    logger.ILogger
}

// Send queues an event frame. It fails once the connection is gone or the
// client stops draining its buffer.
func (c *Client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.gone:
		return ErrClientGone
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.gone:
		return ErrClientGone
	default:
		c.markGone()
		return ErrClientGone
	}
}

func (c *Client) markGone() {
	c.closeOnce.Do(func() { close(c.gone) })
}

// readRequest reads the request frame.
func (c *Client) readRequest() ([]byte, error) {
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(requestWait))
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

// readPump keeps reading after the request so pongs and close frames are
// processed. cancel runs when the peer goes away.
func (c *Client) readPump(cancel context.CancelFunc) {
	defer func() {
		c.markGone()
		cancel()
	}()
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("ChatSocket", "unexpected close", map[string]interface{}{"user_id": c.UserID.String(), "error": err.Error()})
			}
			return
		}
	}
}

// writePump drains send until it is closed, then sends a close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markGone()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
