package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/campus-kb/campusqa/internal/pipeline"
	"github.com/campus-kb/campusqa/internal/store"
)

// statusClientClosedRequest mirrors the nginx convention for a client that
// cancelled mid-request.
const statusClientClosedRequest = 499

// AskHandler exposes the question answering pipeline over HTTP.
type AskHandler struct {
	Pipeline *pipeline.Pipeline
	Store    *store.Store
	Timeout  time.Duration
}

type askRequest struct {
	Question  string `json:"question"`
	RequestID string `json:"request_id,omitempty"`
}

// Register mounts the ask endpoints on the group.
func (h *AskHandler) Register(g *echo.Group) {
	g.POST("/ask", h.ask)
	g.GET("/ask/stream", h.askStream)
	g.POST("/ask/:id/cancel", h.cancel)
	g.GET("/index/stats", h.indexStats)
}

func (h *AskHandler) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx := c.Request().Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	answer, err := h.Pipeline.Process(ctx, req.Question, req.RequestID)
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			return c.JSON(statusClientClosedRequest, map[string]string{"error": "request cancelled"})
		}
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

func (h *AskHandler) askStream(c echo.Context) error {
	question := c.QueryParam("q")
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	requestID := c.QueryParam("request_id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Request-Id", requestID)
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	events, err := h.Pipeline.ProcessStream(ctx, question, requestID)
	if err != nil {
		return err
	}
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			return nil
		}
		resp.Flush()
	}
	return nil
}

func (h *AskHandler) cancel(c echo.Context) error {
	requestID := c.Param("id")
	if requestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request id is required")
	}
	if err := h.Pipeline.Cancel(c.Request().Context(), requestID); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancelling", "request_id": requestID})
}

func (h *AskHandler) indexStats(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "index store not configured")
	}
	counts, err := h.Store.CountChunks(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"namespaces": counts})
}
