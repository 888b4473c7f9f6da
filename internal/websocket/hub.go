package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/infrastructure"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts/events"
)

// Message types sent to clients
const (
	TypeConnection = string(events.MessageTypeConnection)
	TypeValidation = string(events.MessageTypeValidationComplete)
)

// broadcastBuffer bounds queued broadcasts; publishers never block on it
const broadcastBuffer = 64

// Message is the envelope of every frame sent to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The clients map is owned by the run loop.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	logger  *slog.Logger
	metrics *infrastructure.Metrics

	count   atomic.Int64
	sent    atomic.Int64
	dropped atomic.Int64

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewHub creates a hub. A nil metrics records nothing.
func NewHub(logger *slog.Logger, metrics *infrastructure.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NoopMetrics()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		h.started.Store(true)
		go h.run()
	})
}

// Stop disconnects every client and waits for the hub loop to exit
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	if h.started.Load() {
		<-h.done
	}
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				h.drop(ctx, client)
			}
			h.logger.Info("hub stopped",
				slog.Int64("messages_sent", h.sent.Load()),
				slog.Int64("messages_dropped", h.dropped.Load()))
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Add(1)
			h.metrics.WebSocketClients.Add(ctx, 1)

			h.logger.InfoContext(client.context(), "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", len(h.clients)))

			if data, err := json.Marshal(Message{
				Type:      TypeConnection,
				Data:      map[string]string{"status": "connected", "client_id": client.id},
				Timestamp: time.Now().UTC(),
				TraceID:   client.traceID,
			}); err == nil {
				h.deliver(ctx, client, data)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(ctx, client)
				h.logger.InfoContext(client.context(), "client unregistered",
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", len(h.clients)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				h.deliver(ctx, client, message)
			}
		}
	}
}

// deliver queues data on the client, disconnecting clients whose buffer is full
func (h *Hub) deliver(ctx context.Context, client *Client, data []byte) {
	select {
	case client.send <- data:
		h.sent.Add(1)
	default:
		h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.drop(ctx, client)
	}
}

func (h *Hub) drop(ctx context.Context, client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
	h.metrics.WebSocketClients.Add(ctx, -1)
}

// Register adds a client. After Stop the connection is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.conn.Close()
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Publish queues a typed message for every connected client. The trace ID of
// ctx travels with the message. When the queue is full the message is dropped.
func (h *Hub) Publish(ctx context.Context, msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal message",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.dropped.Add(1)
		h.logger.WarnContext(ctx, "broadcast queue full, dropping message",
			slog.String("type", msgType))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Stats returns hub counters for health reporting
func (h *Hub) Stats() map[string]int64 {
	return map[string]int64{
		"active_clients":   h.count.Load(),
		"messages_sent":    h.sent.Load(),
		"messages_dropped": h.dropped.Load(),
	}
}
