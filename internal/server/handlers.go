package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/radeon-ai/reasoner/internal/agent"
	"github.com/radeon-ai/reasoner/internal/conversation"
	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/semantic"
	"github.com/radeon-ai/reasoner/internal/telemetry"
)

// ChatHandler serves the query API.
type ChatHandler struct {
	Agent     *agent.Agent
	Holder    *knowledge.Holder
	Store     conversation.Store
	Telemetry *telemetry.Telemetry

	started time.Time
}

func (h *ChatHandler) Register(g *echo.Group) {
	h.started = time.Now()
	g.POST("/chat", h.chat)
	g.GET("/status", h.status)
	g.GET("/search", h.search)
	g.GET("/sessions/:id", h.session)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req agent.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.Agent.Process(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, semantic.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "message required")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) status(c echo.Context) error {
	ix := h.Holder.Load()
	var stats knowledge.Stats
	if ix != nil {
		stats = ix.Stats()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"knowledge_base": stats,
		"queries":        h.Telemetry.Snapshot(),
	})
}

func (h *ChatHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k := 10
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = n
	}
	ix := h.Holder.Load()
	if ix == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge index not ready")
	}
	hits, err := ix.SearchContent(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}

func (h *ChatHandler) session(c echo.Context) error {
	id := c.Param("id")
	sess, ok, err := h.Store.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	queries := make([]string, 0, len(sess.History))
	for _, t := range sess.History {
		queries = append(queries, t.Query)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id":  sess.SessionID,
		"turns":       len(sess.History),
		"queries":     queries,
		"last_topics": sess.LastTopics,
		"updated_at":  sess.UpdatedAt,
	})
}
