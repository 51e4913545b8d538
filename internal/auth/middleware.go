package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

const claimsKey = "session_claims"

// TokenValidator resolves and validates a session token for one
// conversation. Implemented by the handoff service, which holds the
// per-tenant token managers.
type TokenValidator interface {
	ValidateSessionToken(conversationID, token string) (*SessionClaims, error)
}

// SessionMiddleware validates session bearer tokens on conversation-scoped
// routes and binds the token to the conversation named in the path.
type SessionMiddleware struct {
	validator TokenValidator
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(validator TokenValidator) *SessionMiddleware {
	return &SessionMiddleware{validator: validator}
}

// Handle enforces authentication for session-scoped routes. SSE clients
// cannot set headers, so a token query parameter is accepted as a fallback.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	token := ""
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}
		token = parts[1]
	} else {
		token = c.Query("token")
	}
	if token == "" {
		return apperrors.NewUnauthorized("missing authorization")
	}

	conversationID := c.Params("conversationId")
	claims, err := m.validator.ValidateSessionToken(conversationID, token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.ConversationID != conversationID {
		return apperrors.NewUnauthorized("token not valid for this conversation")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the authenticated session claims.
func ClaimsFromContext(c *fiber.Ctx) (*SessionClaims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*SessionClaims)
	return claims, ok
}
