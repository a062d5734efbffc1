package dream

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dreamrecorder/server/internal/shared/errors"
)

// HealthChecker verifies one upstream dependency, typically its credential.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler handles HTTP requests for the dream pipeline.
type Handler struct {
	service      *Service
	enhancer     *Enhancer
	orchestrator *Orchestrator
	bus          *Bus
	checks       map[string]HealthChecker
	logger       *zap.Logger
}

// HandlerConfig holds handler construction parameters.
type HandlerConfig struct {
	Service      *Service
	Enhancer     *Enhancer
	Orchestrator *Orchestrator
	Bus          *Bus
	// Checks maps dependency names to upstream credential checks for the
	// readiness endpoint.
	Checks map[string]HealthChecker
	Logger *zap.Logger
}

// NewHandler creates a new dream handler.
func NewHandler(cfg *HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:      cfg.Service,
		enhancer:     cfg.Enhancer,
		orchestrator: cfg.Orchestrator,
		bus:          cfg.Bus,
		checks:       cfg.Checks,
		logger:       logger,
	}
}

// RegisterRoutes registers the dream pipeline routes. The guards run only
// on routes that start a generation; enhancement and the progress stream
// stay unguarded.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, generationGuards ...gin.HandlerFunc) {
	guarded := r.Group("", generationGuards...)
	guarded.POST("/dreams", h.Record)
	guarded.POST("/generations", h.Generate)

	r.POST("/prompts/enhance", h.Enhance)
	r.GET("/progress", h.Progress)
}

// Record runs the full pipeline for one dream transcript.
func (h *Handler) Record(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Record(c.Request.Context(), req.Transcript, req.Extend)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Enhance turns a raw dream description into a generation prompt without
// starting a generation.
func (h *Handler) Enhance(c *gin.Context) {
	var req EnhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prompt, err := h.enhancer.Enhance(c.Request.Context(), req.Text, req.Extend)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, EnhanceResponse{
		Prompt:     prompt,
		Structured: ParsePrompt(prompt).Structured,
	})
}

// Generate starts a generation from an already-final prompt.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	video, err := h.orchestrator.Generate(c.Request.Context(), req.Prompt, req.Extend, req.ExtensionPrompt)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// Progress streams pipeline progress events over SSE until the client
// disconnects. A slow consumer drops events instead of blocking the
// pipeline; every event is a full snapshot, so dropped ones are safe to
// miss.
func (h *Handler) Progress(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events := make(chan ProgressEvent, 16)
	unsubscribe := h.bus.Subscribe(func(e ProgressEvent) {
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-events:
			c.SSEvent("progress", e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Health reports upstream credential checks for readiness probing.
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}

	for name, checker := range h.checks {
		if err := checker.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, resp)
}

func handleError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), errors.ToResponse(err))
}
