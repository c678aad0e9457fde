package middleware

import (
	"context"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/pkg/logger"
)

type (
	// TokenVerifier turns a Bearer token into an operator identity.
	TokenVerifier interface {
		Verify(ctx context.Context, token string) (*models.Operator, error)
	}

	Middleware struct {
		tokens TokenVerifier
		log    logger.Logger
	}
)

func NewMiddleware(tokens TokenVerifier, log logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log,
	}
}
