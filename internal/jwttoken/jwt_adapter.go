package jwttoken

import "github.com/trinsiklabs/recall/internal/platform/middleware"

// MiddlewareAdapter bridges the JWT service to the middleware.TokenValidator
// interface without leaking jwt types into the transport layer.
type MiddlewareAdapter struct {
	svc *Service
}

func NewMiddlewareAdapter(svc *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{svc: svc}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		UserID:    claims.UserID,
		ActorType: claims.ActorType,
		Subject:   claims.Subject,
	}, nil
}
