package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService verifies operator access tokens. Issuing lives in the auth
// service; this side only checks the signature and extracts the identity.
type TokenService struct {
	secret string
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: secret}
}

// Verify validates the given JWT token string and returns the operator it
// identifies.
func (s *TokenService) Verify(ctx context.Context, token string) (*models.Operator, error) {
	ctx = wrap.WithAction(ctx, "verify_token")

	parsedToken, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(s.secret), nil
	})
	if err != nil || !parsedToken.Valid {
		return nil, wrap.Error(ctx, ErrInvalidToken)
	}

	mc, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, wrap.Error(ctx, ErrInvalidToken)
	}

	operatorID, _ := mc["operator_id"].(string)
	if operatorID == "" {
		operatorID, _ = mc["sub"].(string)
	}
	if operatorID == "" {
		return nil, wrap.Error(ctx, ErrInvalidToken)
	}

	roleStr, _ := mc["role"].(string)
	role := types.OperatorRole(roleStr)
	if !role.IsValid() {
		return nil, wrap.Error(ctx, ErrInvalidToken)
	}

	return &models.Operator{ID: operatorID, Role: role}, nil
}
