package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/services"
)

// WebSocketHandler upgrades connections into the push hub
type WebSocketHandler struct {
	hub *services.WebSocketHub
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway serves a local mobile UI; origins are not restricted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades the request and pumps hub messages
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(h.handleMessage)
}

type wsInbound struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if msg.Topic != "" {
			h.hub.Subscribe(client, msg.Topic)
		}
	case services.WSTypeUnsubscribe:
		if msg.Topic != "" {
			h.hub.Unsubscribe(client, msg.Topic)
		}
	case services.WSTypePing:
		payload, _ := json.Marshal(services.WSMessage{Type: services.WSTypePong})
		select {
		case client.Send <- payload:
		default:
		}
	}
}
