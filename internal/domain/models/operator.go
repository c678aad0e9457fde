package models

import (
	"context"

	"github.com/nomadride/surge-engine/internal/domain/types"
)

// Operator is the authenticated identity on the admin surface, extracted
// from the Bearer token by the auth middleware. Token issuing lives outside
// this service; only verification happens here.
type Operator struct {
	ID   string
	Role types.OperatorRole
}

var anonymousOperator = &Operator{}

func AnonymousOperator() *Operator {
	return anonymousOperator
}

func (o *Operator) IsAnonymous() bool {
	return o == anonymousOperator || o.ID == ""
}

type operatorCtxKey struct{}

var operatorKey = operatorCtxKey{}

func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

func OperatorFromContext(ctx context.Context) *Operator {
	if op, ok := ctx.Value(operatorKey).(*Operator); ok {
		return op
	}
	return nil
}
