package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// ActorType classifies the token bearer. The checkpoint authorization gate
// treats only ActorHuman as able to authorize rollbacks.
const (
	ActorHuman = "human"
	ActorAgent = "agent"
)

// Claims represents the JWT claims for access tokens issued to humans and to
// autonomous agents acting on a user's behalf.
type Claims struct {
	UserID    string `json:"user_id"`
	ActorType string `json:"actor_type"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey string, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateToken issues a token for the given user and actor classification.
func (s *Service) GenerateToken(userID uuid.UUID, subject, actorType string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID.String(),
		ActorType: actorType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerr.New(domainerr.CodeUnauthorized, "token has expired")
		}
		return nil, domainerr.New(domainerr.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, domainerr.New(domainerr.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, domainerr.New(domainerr.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
