package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/observability"
	"github.com/spec-kit/handoff-service/internal/service"
)

// StreamHandler serves the SSE egress: normalized handoff events pushed to
// the browser, with periodic comment keep-alives during idle periods.
type StreamHandler struct {
	service   *service.HandoffService
	metrics   *observability.Metrics
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewStreamHandler constructs handler.
func NewStreamHandler(handoffService *service.HandoffService, metrics *observability.Metrics, logger *zap.Logger, keepAlive time.Duration) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &StreamHandler{service: handoffService, metrics: metrics, logger: logger, keepAlive: keepAlive}
}

// Stream GET /handoff/sessions/:conversationId/stream.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	conversationID := c.Params("conversationId")
	ch, cancel, err := h.service.Subscribe(conversationID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	h.metrics.StreamOpened(conversationID)
	keepAlive := h.keepAlive
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer h.metrics.StreamClosed(conversationID)

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(dto.FromChatEvent(event))
				if err != nil {
					h.logger.Warn("failed to encode stream event", zap.Error(err))
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					// Client went away; normal closure.
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}
