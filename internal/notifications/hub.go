package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"cnom/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 4
	// Max total connections
	maxTotalConns = 2000
)

// Hub connection limit errors.
var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
)

// PaymentHub fans payment events out to every connected staff WebSocket.
type PaymentHub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
}

// NewPaymentHub creates an empty hub.
func NewPaymentHub() *PaymentHub {
	return &PaymentHub{conns: make(map[string]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *PaymentHub) Name() string { return "payment hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *PaymentHub) Register(userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.PaymentEventSubscribers.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call twice.
func (h *PaymentHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	h.totalConns--
	observability.PaymentEventSubscribers.Dec()
	close(client.Send)
}

// Count returns the number of registered connections.
func (h *PaymentHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// BroadcastAll sends message to every connected websocket client.
func (h *PaymentHub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes the hub to payment events published through n.
func (h *PaymentHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPaymentSubscriber(ctx, func(_ string, payload string) {
		h.BroadcastAll(payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *PaymentHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, userConns := range h.conns {
		for client := range userConns {
			close(client.Send)
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %s: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %s: %v", userID, err)
			}
		}
		observability.PaymentEventSubscribers.Sub(float64(len(userConns)))
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
