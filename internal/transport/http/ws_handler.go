package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"classroom-activity-service/internal/app"
)

// WSHandler streams activity change events to connected clients. The
// stream is one-directional: mutations go through the REST routes, the
// socket only carries `activity.updated` / `activity.deleted` events.
type WSHandler struct {
	hub      *app.EventHub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.EventHub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and forwards hub events until the client
// disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// Drain inbound frames so close/ping handling works; clients have
	// nothing to say on this socket.
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerGone:
			return
		}
	}
}
