package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// userDataClaims is the payload of a signed user-data JWT minted by the
// embedding application.
type userDataClaims struct {
	UserID    string            `json:"userId"`
	Email     string            `json:"email,omitempty"`
	FirstName string            `json:"firstName,omitempty"`
	LastName  string            `json:"lastName,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// DecryptAndVerifySignedUserData verifies the embedding application's signed
// user-data JWT against the tenant secret and returns the authenticated
// profile. An empty token yields a nil profile, not an error: anonymous
// visitors are a valid state the orchestrator guards against separately.
func DecryptAndVerifySignedUserData(signed string, secret string) (*domain.UserProfile, error) {
	if signed == "" {
		return nil, nil
	}
	if secret == "" {
		return nil, errors.New("no user-data verification secret configured")
	}

	parsed, err := jwt.ParseWithClaims(signed, &userDataClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*userDataClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, errors.New("invalid user data claims")
	}

	return &domain.UserProfile{
		ID:              claims.UserID,
		Email:           claims.Email,
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		IsAuthenticated: true,
		Metadata:        claims.Metadata,
	}, nil
}
