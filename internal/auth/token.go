package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// TokenManager issues and validates session bearer tokens. Tokens are signed
// with the tenant's provider secret; the JWT keyid header carries the
// tenant's public identifier so providers can resolve the key.
type TokenManager struct {
	secret []byte
	keyID  string
	ttl    time.Duration
}

// NewTokenManager builds a manager from the tenant's provider configuration.
func NewTokenManager(cfg domain.HandoffConfiguration, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{
		secret: []byte(cfg.APISecret),
		keyID:  cfg.APIKey,
		ttl:    time.Duration(ttlMinutes) * time.Minute,
	}
}

// SessionClaims describes the session JWT payload.
type SessionClaims struct {
	Scope           string `json:"scope"`
	UserID          string `json:"userId,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`
	ConversationID  string `json:"conversationId"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a bearer token scoped to one conversation.
func (tm *TokenManager) GenerateSessionToken(user domain.UserProfile, sessionID, conversationID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.ttl)
	claims := &SessionClaims{
		Scope:           "appUser",
		UserID:          user.ID,
		SessionID:       sessionID,
		ConversationID:  conversationID,
		IsAuthenticated: user.IsAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = tm.keyID
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseSessionToken validates and returns claims.
func (tm *TokenManager) ParseSessionToken(tokenStr string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
