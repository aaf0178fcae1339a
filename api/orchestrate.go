package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"querygraph/domain"
)

// Orchestrate handles POST /orchestrate. A request with a resume payload
// and a thread id re-enters a suspended thread; anything else starts a
// turn and requires a non-empty query.
func (h *Handler) Orchestrate(c echo.Context) error {
	var req domain.OrchestrateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "invalid request body"})
	}

	ctx := c.Request().Context()

	var result *domain.TurnResult
	var err error
	if req.IsResume() {
		result, err = h.executor.Resume(ctx, req.ThreadID, req.ResumePayload)
	} else {
		result, err = h.executor.Start(ctx, req.ThreadID, req.Query, req.Messages)
	}
	if err != nil {
		return h.writeError(c, err, req.ThreadID)
	}

	if result.Status == domain.ThreadStatusSuspended {
		return c.JSON(http.StatusOK, domain.InterruptedResponse{
			Type:          "interrupted",
			ThreadID:      result.ThreadID,
			InterruptData: *result.Interrupt,
			Messages:      result.Messages,
		})
	}

	return c.JSON(http.StatusOK, domain.CompletedResponse{
		Text:     result.Text,
		ThreadID: result.ThreadID,
		Messages: result.Messages,
	})
}
