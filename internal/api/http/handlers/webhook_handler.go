package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/settings"
	"github.com/spec-kit/handoff-service/internal/strategy"
	"github.com/spec-kit/handoff-service/internal/transport"
)

// WebhookHandler is the pub/sub relay ingress. It always answers
// 200 {success:true}: internal errors and filtering outcomes are never
// leaked back to the provider.
type WebhookHandler struct {
	resolver settings.Resolver
	relay    *transport.Relay
	logger   *zap.Logger
	now      func() time.Time
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(resolver settings.Resolver, relay *transport.Relay, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{resolver: resolver, relay: relay, logger: logger, now: time.Now}
}

// Receive POST /webhooks/:provider/:orgId.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	provider := domain.ProviderType(c.Params("provider"))
	orgID := c.Params("orgId")
	body := c.Body()

	h.accept(c, provider, orgID, body)
	return c.JSON(fiber.Map{"success": true})
}

// accept validates, filters, and republishes. Rejections are logged only;
// the HTTP response is fixed regardless.
func (h *WebhookHandler) accept(c *fiber.Ctx, provider domain.ProviderType, orgID string, body []byte) {
	cfg, err := h.resolver.GetHandoffConfiguration(c.Context(), orgID, "")
	if err != nil || cfg == nil {
		h.logger.Warn("webhook for unknown tenant", zap.String("org_id", orgID))
		return
	}

	if cfg.SigningSecret != "" {
		signature := c.Get("X-Webhook-Signature")
		signedAtUnix, err := strconv.ParseInt(c.Get("X-Webhook-Timestamp"), 10, 64)
		if err != nil {
			h.logger.Warn("webhook missing signature timestamp", zap.String("org_id", orgID))
			return
		}
		if err := transport.VerifyWebhookSignature(cfg.SigningSecret, body, signature, time.Unix(signedAtUnix, 0), h.now()); err != nil {
			h.logger.Warn("webhook signature rejected",
				zap.String("org_id", orgID), zap.Error(err))
			return
		}
	}

	var req dto.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("malformed webhook body", zap.String("org_id", orgID), zap.Error(err))
		return
	}

	for _, event := range req.Events {
		var payload dto.WebhookEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Conversation.ID == "" {
			h.logger.Debug("webhook event without conversation id", zap.String("type", event.Type))
			continue
		}
		raw := strategy.RawEvent{Type: event.Type, ID: event.ID, Payload: event.Payload}
		if err := h.relay.Publish(c.Context(), provider, payload.Conversation.ID, req.Webhook.ID, raw); err != nil {
			h.logger.Error("failed to publish webhook event",
				zap.String("conversation_id", payload.Conversation.ID), zap.Error(err))
		}
	}
}
