package analyses

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trisenti-backend/internal/shared/telemetry"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	// The renderer runs on a different dev origin; CORS policy is handled by
	// the HTTP middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type watchEvent struct {
	Type     string     `json:"type"`
	Analysis recordView `json:"analysis"`
}

// watch streams current-record snapshots over a websocket, one event per
// controller transition. The connection closes when the client goes away.
func (h *Handler) watch(c *gin.Context) {
	if h.Ctrl.Watch == nil {
		c.Status(http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.Ctrl.Watch.Subscribe()
	defer cancel()

	// Detect client disconnect; inbound frames are otherwise ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if record, ok := h.Ctrl.Current(); ok {
		if err := writeEvent(conn, record); err != nil {
			return
		}
	}

	for {
		select {
		case record, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, record); err != nil {
				telemetry.Info("analysis.watch_closed", map[string]any{
					"error": err.Error(),
				})
				return
			}
		case <-closed:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, record AnalysisRecord) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	eventType := "stage_update"
	if record.Finalized() {
		eventType = "finalized"
	}
	return conn.WriteJSON(watchEvent{Type: eventType, Analysis: view(record)})
}
