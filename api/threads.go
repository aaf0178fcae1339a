package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"querygraph/domain"
)

// ListThreads returns thread summaries, optionally filtered by status.
// GET /v1/threads?status=SUSPENDED&limit=50
func (h *Handler) ListThreads(c echo.Context) error {
	ctx := c.Request().Context()

	status := domain.ThreadStatus(c.QueryParam("status"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	threads, err := h.store.ListThreads(ctx, status, limit)
	if err != nil {
		h.logger.Error("failed to list threads", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to list threads"})
	}
	if threads == nil {
		threads = []domain.ThreadSummary{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"threads": threads})
}

// GetThread returns a thread's status and pending interrupt, so a caller
// can re-render a lost confirmation prompt.
// GET /v1/threads/:thread_id
func (h *Handler) GetThread(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")

	snap, err := h.store.GetSnapshot(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to get thread", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to get thread", ThreadID: threadID})
	}
	if snap == nil {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "thread not found", ThreadID: threadID})
	}

	return c.JSON(http.StatusOK, domain.ThreadResponse{
		ThreadID:         snap.ThreadID,
		Status:           snap.Status,
		PendingInterrupt: snap.PendingInterrupt,
		Messages:         len(snap.Messages),
	})
}

// GetThreadMessages returns a page of a thread's transcript.
// GET /v1/threads/:thread_id/messages?limit=50&before=<message_id>
func (h *Handler) GetThreadMessages(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("thread_id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	before := c.QueryParam("before")

	snap, err := h.store.GetSnapshot(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to get thread", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to get messages", ThreadID: threadID})
	}
	if snap == nil {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "thread not found", ThreadID: threadID})
	}

	messages := snap.Messages
	if before != "" {
		for i, m := range messages {
			if m.MessageID == before {
				messages = messages[:i]
				break
			}
		}
	}

	hasMore := false
	if len(messages) > limit {
		hasMore = true
		messages = messages[len(messages)-limit:]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": hasMore,
	})
}
