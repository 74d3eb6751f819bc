package clients

import (
	"context"

	"github.com/google/uuid"

	ws "github.com/Meixii/thesis-production-sub001/internal/transport/websocket"
)

// WebSocketClient adapts the hub to the notifier the services expect. Ledger
// events (payment submitted/verified/rejected) reach the member's open
// connections; delivery is best-effort.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

func (c *WebSocketClient) Notify(ctx context.Context, memberID uuid.UUID, event string, payload map[string]any) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(memberID, &ws.Message{
		Type: event,
		Data: payload,
	})
	return nil
}
