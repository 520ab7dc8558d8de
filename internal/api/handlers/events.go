package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Conceptual-Machines/voxel-architect/internal/api/middleware"
	"github.com/Conceptual-Machines/voxel-architect/internal/logger"
	"github.com/Conceptual-Machines/voxel-architect/internal/services"
)

// EventsHandler streams build progress over websockets.
type EventsHandler struct {
	builds   *services.BuildService
	upgrader websocket.Upgrader
}

// NewEventsHandler accepts connections without an Origin header (game
// servers, CLIs) and browsers from allowedOrigins.
func NewEventsHandler(builds *services.BuildService, allowedOrigins []string) *EventsHandler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = middleware.DefaultAllowedOrigins
	}
	return &EventsHandler{
		builds: builds,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origin, allowedOrigins)
			},
		},
	}
}

// Stream sends every progress event for the actor until the client goes away.
func (h *EventsHandler) Stream(c *gin.Context) {
	actor := c.Param("actor")

	// Subscribed before the handshake completes so no event is missed.
	events, unsubscribe := h.builds.Subscribe(actor)
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", logger.Fields{"actor": actor, "error": err.Error()})
		return
	}

	logger.Info("Progress stream opened", logger.Fields{"actor": actor})
	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, events, closed)
	logger.Info("Progress stream closed", logger.Fields{"actor": actor})
}

// readPump discards client messages and keeps the read deadline fresh on pong.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket read error", logger.Fields{"error": err.Error()})
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, events <-chan services.Event, closed <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
