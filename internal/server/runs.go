package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aadityasp/agreegraph/config"
	"github.com/aadityasp/agreegraph/internal/cache"
	"github.com/aadityasp/agreegraph/internal/pipeline"
)

// RunsHandler exposes pipeline runs and cache accounting over HTTP.
type RunsHandler struct {
	cfg    *config.Config
	orch   *pipeline.Orchestrator
	cache  cache.Cache
	logger *log.Logger
}

type RunRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

func NewRunsHandler(cfg *config.Config, orch *pipeline.Orchestrator, c cache.Cache) *RunsHandler {
	return &RunsHandler{
		cfg:    cfg,
		orch:   orch,
		cache:  c,
		logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/runs", h.trigger)
	g.GET("/runs/:session_id", h.get)
	g.DELETE("/runs/:session_id", h.reset)
	g.GET("/cache/stats", h.cacheStats)
}

// trigger runs the full pipeline synchronously and returns the final state.
// An omitted session_id starts a fresh session; supplying one reuses it so
// interaction history accumulates across runs.
func (h *RunsHandler) trigger(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	state, err := h.orch.Run(c.Request().Context(), strings.TrimSpace(req.SessionID), req.Text)
	if err != nil {
		h.logger.Printf("run failed for session %s: %v", state.SessionID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, state)
}

// get returns the stored state for a session.
func (h *RunsHandler) get(c echo.Context) error {
	sessionID := c.Param("session_id")
	state, ok := h.orch.Session(sessionID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, state)
}

// reset drops a session's state. The shared cache and the durable graph are
// unaffected; they are keyed by content, not session.
func (h *RunsHandler) reset(c echo.Context) error {
	sessionID := c.Param("session_id")
	if !h.orch.ResetSession(sessionID) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

// cacheStats returns the shared cache hit/miss accounting.
func (h *RunsHandler) cacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.cache.Stats())
}
