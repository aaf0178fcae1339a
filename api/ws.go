package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"querygraph/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamThreadEvents upgrades to a WebSocket and streams step events for
// a thread: stored history after the requested timestamp first, then live
// events from the hub.
// GET /v1/threads/:thread_id/events?after_ts=0
func (h *Handler) StreamThreadEvents(c echo.Context) error {
	if h.hub == nil {
		return c.JSON(http.StatusServiceUnavailable, domain.ErrorResponse{Error: "event stream is not enabled"})
	}

	ctx := c.Request().Context()
	threadID := c.Param("thread_id")
	afterTs, _ := strconv.ParseInt(c.QueryParam("after_ts"), 10, 64)

	snap, err := h.store.GetSnapshot(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to get thread", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to get thread", ThreadID: threadID})
	}
	if snap == nil {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "thread not found", ThreadID: threadID})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := h.hub.NewConnection(ws, threadID)
	go conn.WritePump()

	// Replay stored events before live delivery picks up.
	events, err := h.store.GetEvents(ctx, threadID, afterTs, 500)
	if err != nil {
		h.logger.Warn("failed to replay events", zap.String("thread_id", threadID), zap.Error(err))
	}
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		select {
		case conn.Send <- data:
		default:
		}
	}

	// Block until the client goes away.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.Unregister(conn)
	return nil
}
