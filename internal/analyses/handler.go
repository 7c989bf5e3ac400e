package analyses

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"screenplay-analyzer/internal/progress"
	"screenplay-analyzer/internal/shared/server/middleware"
	"screenplay-analyzer/internal/shared/server/respond"
	"screenplay-analyzer/internal/shared/telemetry"
	"screenplay-analyzer/internal/usage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ProgressStreamer follows one job's progress events.
type ProgressStreamer interface {
	Stream(ctx context.Context, id string, emit func(progress.Message) error) error
}

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc      *Service
	Progress ProgressStreamer
	polls    *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, stream ProgressStreamer) *Handler {
	return &Handler{Svc: svc, Progress: stream, polls: newPollLimiter(0, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze/text", h.analyzeText)
	rg.POST("/analyze/pdf", h.analyzePDF)
	rg.GET("/analysis/:id", h.getAnalysis)
	rg.GET("/analysis/:id/progress", h.streamProgress)
	rg.GET("/user/:id/analyses", h.listAnalyses)
}

type textRequest struct {
	Title          string   `json:"title"`
	ScreenplayText string   `json:"screenplay_text"`
	Genre          string   `json:"genre"`
	UserID         string   `json:"user_id"`
	BudgetEstimate *float64 `json:"budget_estimate"`
}

type acceptedResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (h *Handler) analyzeText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", nil)
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.SubmitText(ctx, TextInput{
		UserID: req.UserID,
		Title:  req.Title,
		Text:   req.ScreenplayText,
		Genre:  req.Genre,
		Budget: req.BudgetEstimate,
	})
	if err != nil {
		h.submitFailed(c, err)
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.Accepted(c, acceptedResponse{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		Message:    "Analysis started successfully",
	})
}

func (h *Handler) analyzePDF(c *gin.Context) {
	limit := h.Svc.maxUpload()
	// leave room for the other multipart fields
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+(1<<20))

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeTooLarge, "file exceeds the upload limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file is required", nil)
		return
	}
	if fh.Size > limit {
		respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeTooLarge, "file exceeds the upload limit", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "failed to read file", nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "failed to read file", nil)
		return
	}

	var userBudget *float64
	if raw := strings.TrimSpace(c.PostForm("budget_estimate")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "budget_estimate must be a number", nil)
			return
		}
		userBudget = &v
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.SubmitPDF(ctx, PDFInput{
		UserID:   c.PostForm("user_id"),
		Title:    c.PostForm("title"),
		Genre:    c.PostForm("genre"),
		Budget:   userBudget,
		FileName: fh.Filename,
		Data:     data,
	})
	if err != nil {
		h.submitFailed(c, err)
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.Accepted(c, acceptedResponse{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		Message:    "PDF upload and analysis started successfully",
	})
}

func (h *Handler) submitFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalid):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
	case errors.Is(err, ErrFileTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeTooLarge, "file exceeds the upload limit", nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, ErrorCodeLimitReached, "Monthly usage limit reached", []map[string]string{
			{"field": "usage", "issue": "limit_reached"},
		})
	default:
		telemetry.Error("analysis.submit_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to start analysis", nil)
	}
}

type statusResponse struct {
	AnalysisID   string `json:"analysis_id"`
	Status       string `json:"status"`
	Result       any    `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (h *Handler) getAnalysis(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "analysis id is required", nil)
		return
	}
	c.Set("analysisId", id)
	if !h.polls.Allow(c.ClientIP(), id) {
		c.Header("Retry-After", strconv.Itoa(h.polls.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, ErrorCodeRateLimited, "polling too frequently", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "Analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch analysis", nil)
		return
	}

	resp := statusResponse{
		AnalysisID:   analysis.ID,
		Status:       analysis.Status,
		ErrorMessage: analysis.Error,
	}
	if analysis.Status == StatusCompleted && analysis.Record != nil {
		resp.Result = analysis
	}
	respond.OK(c, resp)
}

func (h *Handler) streamProgress(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "analysis id is required", nil)
		return
	}
	if h.Progress == nil {
		respond.Error(c, http.StatusServiceUnavailable, ErrorCodeInternal, "progress tracking is not configured", nil)
		return
	}
	c.Set("analysisId", id)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	err := h.Progress.Stream(c.Request.Context(), id, func(msg progress.Message) error {
		// Unnamed frames reach EventSource.onmessage; msg carries its kind as "type".
		c.Render(-1, sse.Event{Data: msg})
		c.Writer.Flush()
		return c.Request.Context().Err()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		telemetry.Warn("progress.stream_failed", map[string]any{
			"analysis_id": id,
			"request_id":  middleware.RequestIDFromContext(c),
			"error":       err.Error(),
		})
	}
}

type listItem struct {
	AnalysisID     string   `json:"analysis_id"`
	Title          string   `json:"title"`
	Genre          string   `json:"genre,omitempty"`
	Source         string   `json:"source"`
	Status         string   `json:"status"`
	OverallScore   *float64 `json:"overall_score,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	TotalCost      *float64 `json:"total_cost,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "user id is required", nil)
		return
	}
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	list, err := h.Svc.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list analyses", nil)
		return
	}

	items := make([]listItem, 0, len(list))
	for _, a := range list {
		item := listItem{
			AnalysisID: a.ID,
			Title:      a.Title,
			Genre:      a.Genre,
			Source:     a.Source,
			Status:     a.Status,
			CreatedAt:  a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if a.Status == StatusCompleted && a.Record != nil {
			score, cost := a.Record.OverallScore, a.Record.TotalCost
			item.OverallScore = &score
			item.TotalCost = &cost
			item.Recommendation = a.Record.Recommendation
		}
		items = append(items, item)
	}

	respond.OK(c, gin.H{
		"user_id":  userID,
		"analyses": items,
		"count":    len(items),
		"limit":    limit,
		"offset":   offset,
	})
}
