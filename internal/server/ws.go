package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ayusman/handchord/internal/app"
	"github.com/ayusman/handchord/internal/logger"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventSource publishes live instrument events.
type EventSource interface {
	Subscribe() (<-chan app.Event, func())
	Status() app.Status
}

// EventsHandler streams live events to WebSocket clients: hands, chord,
// viz, controls, state, recording and alert. Each client starts with a
// state event.
type EventsHandler struct {
	source EventSource
	log    logger.Logger
}

// NewEventsHandler creates a new EventsHandler over source.
func NewEventsHandler(source EventSource) *EventsHandler {
	return &EventsHandler{
		source: source,
		log:    logger.Named("events"),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.source.Subscribe()
	defer cancel()

	// The read loop only detects the client going away.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, app.Event{Type: app.EventState, Data: h.source.Status()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev app.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
