package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/fieldsync/internal/server/notify"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = eventsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Клиенты - устройства с bearer токеном, а не браузеры
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler streams sync events over websocket
type EventsHandler struct {
	logger *slog.Logger
	hub    *notify.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(logger *slog.Logger, hub *notify.Hub) *EventsHandler {
	return &EventsHandler{logger: logger, hub: hub}
}

// Stream обрабатывает GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}
	role, _ := GetRole(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.WarnContext(ctx, "Websocket upgrade failed", "device_id", deviceID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.hub.Subscribe(deviceID, role)
	defer h.hub.Unsubscribe(sub.ID)

	h.logger.InfoContext(ctx, "Event subscriber connected", "device_id", deviceID, "subscription", sub.ID)

	// читаем только для обработки pong и закрытия соединения
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.InfoContext(ctx, "Event subscriber disconnected", "device_id", deviceID)
			return
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(eventsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.WarnContext(ctx, "Failed to write event", "device_id", deviceID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		}
	}
}
