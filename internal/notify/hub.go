package notify

import (
	"sync"

	"referral_platform/internal/model"
	"referral_platform/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TypeCommissionEarned = "commission_earned"

	sendBuffer = 16
)

type Message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	userID string
	conn   Conn
	send   chan []byte
}

// Hub fans commission notifications out to every open connection of the
// earning user. Delivery is best effort: a slow client drops messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
	}
}

// Serve registers conn for userID and blocks until the peer goes away.
func (h *Hub) Serve(userID string, conn Conn) {
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(c)

	done := make(chan struct{})
	go h.writeLoop(c, done)

	defer func() {
		h.unregister(c)
		close(c.send)
		<-done
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Logger().Info("websocket unexpected close",
					zap.String("user_id", userID),
					zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client, done chan<- struct{}) {
	defer close(done)

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Logger().Warn("failed to write notification",
				zap.String("user_id", c.userID),
				zap.Error(err))
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[c.userID]
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
}

func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) NotifyCommission(commission *model.ReferralCommission) {
	data, err := json.Marshal(Message{
		Type: TypeCommissionEarned,
		Payload: map[string]any{
			"commission_id": commission.ID,
			"payment_id":    commission.PaymentID,
			"from_user_id":  commission.FromUserID,
			"level":         commission.Level,
			"amount":        commission.Amount.StringFixed(2),
			"created_at":    commission.CreatedAt,
		},
	})
	if err != nil {
		logger.Logger().Error("failed to marshal notification", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[commission.ToUserID] {
		select {
		case c.send <- data:
		default:
			logger.Logger().Warn("notification dropped for slow client",
				zap.String("user_id", c.userID))
		}
	}
}
