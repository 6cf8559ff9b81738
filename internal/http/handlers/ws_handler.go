package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/events"
	"go.uber.org/zap"
)

type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WSHub pushes commitment and registry events to the accounts they concern.
type WSHub struct {
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]wsWriter
}

func NewWSHub(subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]wsWriter),
	}
}

// Start subscribes the hub to both event streams. Delivery stops when ctx
// is done.
func (h *WSHub) Start(ctx context.Context) {
	err := h.subscriber.Subscribe(ctx, func(_ string, event events.Event) {
		h.deliver(event)
	}, events.StreamCommitments, events.StreamRegistry)
	if err != nil {
		h.log.Error("ws hub subscribe failed", zap.Error(err))
	}
}

// recipients lists the accounts an event is addressed to.
func recipients(event events.Event) []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range []string{"address", "caller", "recipient", "user"} {
		v, ok := event.Payload[k].(string)
		if !ok || v == "" {
			continue
		}
		v = strings.ToLower(v)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (h *WSHub) deliver(event events.Event) {
	targets := recipients(event)
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, addr := range targets {
		for _, conn := range h.connections[addr] {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func (h *WSHub) register(addr string, conn wsWriter) func() {
	h.mu.Lock()
	h.connections[addr] = append(h.connections[addr], conn)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		conns := h.connections[addr]
		for i, c := range conns {
			if c == conn {
				h.connections[addr] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[addr]) == 0 {
			delete(h.connections, addr)
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	addr := conn.Query("address")
	if !common.IsHexAddress(addr) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing or invalid address"}`))
		conn.Close()
		return
	}

	unregister := h.register(strings.ToLower(common.HexToAddress(addr).Hex()), conn)
	defer func() {
		unregister()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
