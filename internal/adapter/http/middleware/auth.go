package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/domain/types"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

// Auth validates the JWT and injects the operator into context. Requests
// without a token proceed as anonymous; protected endpoints reject those
// via RequireRoles.
func (h *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			r = r.WithContext(models.WithOperator(ctx, models.AnonymousOperator()))
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		operator, err := h.tokens.Verify(ctx, token)
		if err != nil || operator == nil {
			h.log.Error(wrap.ErrorCtx(ctx, err), "failed to authenticate operator", err)
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = wrap.WithOperatorID(ctx, operator.ID)
		next.ServeHTTP(w, r.WithContext(models.WithOperator(ctx, operator)))
	})
}

// RequireRoles wraps a handler and allows only operators with one of the
// given roles.
func (h *Middleware) RequireRoles(next http.HandlerFunc, allowedRoles ...types.OperatorRole) http.Handler {
	allowed := make(map[types.OperatorRole]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := models.OperatorFromContext(r.Context())
		if operator == nil || operator.IsAnonymous() {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[operator.Role]; !ok {
				errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
