// Package api provides HTTP handlers for the querygraph server.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"querygraph/domain"
	"querygraph/graph"
	"querygraph/hub"
	"querygraph/store"
)

// Handler handles HTTP requests.
type Handler struct {
	executor *graph.Executor
	store    store.Store
	hub      *hub.Hub
	logger   *zap.Logger
}

// NewHandler creates a new handler. The hub may be nil when the event
// stream is not served.
func NewHandler(executor *graph.Executor, st store.Store, h *hub.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		executor: executor,
		store:    st,
		hub:      h,
		logger:   logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/orchestrate", h.Orchestrate)

	e.GET("/v1/threads", h.ListThreads)
	e.GET("/v1/threads/:thread_id", h.GetThread)
	e.GET("/v1/threads/:thread_id/messages", h.GetThreadMessages)
	e.GET("/v1/threads/:thread_id/events", h.StreamThreadEvents)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorStatus maps the turn-level error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	if errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrInvalidState) {
		return http.StatusBadRequest
	}
	// Configuration, model call, and turn limit failures are all 500s.
	return http.StatusInternalServerError
}

func (h *Handler) writeError(c echo.Context, err error, threadID string) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("thread_id", threadID), zap.Error(err))
	}
	return c.JSON(status, domain.ErrorResponse{Error: err.Error(), ThreadID: threadID})
}
