package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/service"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// handoffTokenHeader carries the session bearer token back to the browser.
const handoffTokenHeader = "X-Handoff-Token"

// HandoffHandler manages handoff session endpoints.
type HandoffHandler struct {
	service *service.HandoffService
}

// NewHandoffHandler constructs handler.
func NewHandoffHandler(handoffService *service.HandoffService) *HandoffHandler {
	return &HandoffHandler{service: handoffService}
}

// Initialize POST /handoff/sessions.
func (h *HandoffHandler) Initialize(c *fiber.Ctx) error {
	var req dto.InitializeHandoffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OrgID == "" {
		return apperrors.NewValidationError("org_id required", nil)
	}

	history := make([]domain.ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		author := domain.AuthorBot
		if strings.EqualFold(msg.Author, string(domain.AuthorUser)) || strings.EqualFold(msg.Author, "user") {
			author = domain.AuthorUser
		}
		history = append(history, domain.ChatMessage{
			Author:    author,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}

	result, err := h.service.Initialize(c.Context(), service.InitializeInput{
		OrgID:          req.OrgID,
		AgentID:        req.AgentID,
		SignedUserData: req.SignedUserData,
		History:        history,
	})
	if err != nil {
		return err
	}

	c.Set(handoffTokenHeader, result.Token)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.InitializeHandoffResponse{
		ConversationID: result.ConversationID,
		SessionID:      result.SessionID,
		Status:         result.Status,
	}})
}

// SendMessage POST /handoff/sessions/:conversationId/messages.
func (h *HandoffHandler) SendMessage(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}
	if err := h.service.Send(c.Context(), c.Params("conversationId"), req.Text); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"delivered": true}})
}

// End DELETE /handoff/sessions/:conversationId. Idempotent.
func (h *HandoffHandler) End(c *fiber.Ctx) error {
	h.service.End(c.Params("conversationId"))
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.HandoffNotInitialized}})
}

// Timeline GET /handoff/sessions/:conversationId/timeline.
func (h *HandoffHandler) Timeline(c *fiber.Ctx) error {
	timeline, err := h.service.Timeline(c.Params("conversationId"))
	if err != nil {
		return err
	}
	items := make([]dto.TimelineEntry, 0, len(timeline))
	for _, event := range timeline {
		items = append(items, dto.FromChatEvent(event))
	}
	return c.JSON(fiber.Map{"data": items})
}
