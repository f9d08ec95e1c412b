// Package token verifies bearer tokens against the identity provider and
// returns the canonical identity they assert. Validity is never cached:
// every call is a fresh introspection.
package token

import (
	"context"
	"fmt"

	"github.com/go-identity-sync/internal/domain"
)

type Service interface {
	Verify(ctx context.Context, bearerToken string) (*domain.CanonicalIdentity, error)
}

type introspector interface {
	VerifyToken(ctx context.Context, token string) (*domain.CanonicalIdentity, error)
}

type service struct {
	provider introspector
}

func NewService(provider introspector) Service {
	return &service{provider: provider}
}

func (s *service) Verify(ctx context.Context, bearerToken string) (*domain.CanonicalIdentity, error) {
	if bearerToken == "" {
		return nil, fmt.Errorf("empty bearer token: %w", domain.ErrInvalidToken)
	}
	identity, err := s.provider.VerifyToken(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("provider returned identity without id: %w", domain.ErrInvalidToken)
	}
	return identity, nil
}
