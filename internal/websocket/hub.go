package websocket

import (
	"context"
	"sync"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// TurnFunc runs one chat turn. send delivers an event frame.
type TurnFunc func(ctx context.Context, request []byte, send func(v interface{}) error) error

// Hub tracks open chat sockets so they can be cancelled on shutdown.
type Hub struct {
	clients map[*Client]context.CancelFunc
	mu      sync.Mutex
	logger  logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients: make(map[*Client]context.CancelFunc),
		logger:  log,
	}
}

func (h *Hub) register(c *Client, cancel context.CancelFunc) {
	h.mu.Lock()
	h.clients[c] = cancel
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Active is the number of open chat sockets.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown cancels every running turn.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.clients {
		cancel()
	}
	if len(h.clients) > 0 {
		h.logger.Info("ChatSocket", "cancelled open chat sockets", map[string]interface{}{"count": len(h.clients)})
	}
}

// Serve runs one turn on an upgraded connection and returns when the turn
// and both pumps are done.
func (h *Hub) Serve(conn *websocket.Conn, userID uuid.UUID, run TurnFunc) {
	client := &Client{
		Hub:    h,
		Conn:   conn,
		UserID: userID,
		send:   make(chan []byte, sendBuffer),
		gone:   make(chan struct{}),
		logger: h.logger,
	}

	request, err := client.readRequest()
	if err != nil {
		h.logger.Warn("ChatSocket", "no request frame", map[string]interface{}{"user_id": userID.String(), "error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.register(client, cancel)
	defer h.unregister(client)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		client.writePump()
	}()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		client.readPump(cancel)
	}()

	if err := run(ctx, request, client.Send); err != nil {
		h.logger.Debug("ChatSocket", "turn ended with error", map[string]interface{}{"user_id": userID.String(), "error": err.Error()})
	}

	close(client.send)
	<-writeDone
	conn.Close()
	<-readDone
}
