package usage

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"screenplay-analyzer/internal/shared/server/respond"
)

// Handler exposes usage endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/user/:id/usage", h.getUsage)
}

func (h *Handler) getUsage(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "user id is required", nil)
		return
	}
	ctx := c.Request.Context()

	summary, err := h.Svc.Summary(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	limits, err := h.Svc.CheckLimits(ctx, userID)
	if err != nil && !errors.Is(err, ErrLimitReached) {
		h.fail(c, err)
		return
	}

	respond.OK(c, gin.H{
		"summary": summary,
		"limits":  limits,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch usage", nil)
	}
}
