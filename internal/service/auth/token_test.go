package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestVerify_ValidToken(t *testing.T) {
	svc := NewTokenService(testSecret)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"operator_id": "op-1",
		"role":        "ADMIN",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	operator, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if operator.ID != "op-1" || string(operator.Role) != "ADMIN" {
		t.Fatalf("unexpected operator: %+v", operator)
	}
}

func TestVerify_SubClaimFallback(t *testing.T) {
	svc := NewTokenService(testSecret)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub":  "op-2",
		"role": "OPERATOR",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	operator, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if operator.ID != "op-2" {
		t.Fatalf("sub claim must identify the operator, got %q", operator.ID)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	svc := NewTokenService(testSecret)

	token := signToken(t, jwt.SigningMethodHS256, "other-secret", jwt.MapClaims{
		"operator_id": "op-1",
		"role":        "ADMIN",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong signature must be rejected, got %v", err)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(testSecret)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"operator_id": "op-1",
		"role":        "ADMIN",
		"exp":         time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestVerify_RejectsUnknownRole(t *testing.T) {
	svc := NewTokenService(testSecret)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"operator_id": "op-1",
		"role":        "SUPERUSER",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown role must be rejected, got %v", err)
	}
}

func TestVerify_RejectsMissingIdentity(t *testing.T) {
	svc := NewTokenService(testSecret)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("a token without identity must be rejected, got %v", err)
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	svc := NewTokenService(testSecret)

	if _, err := svc.Verify(context.Background(), "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage must be rejected, got %v", err)
	}
}
