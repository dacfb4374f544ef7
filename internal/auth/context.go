package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxAccountCode
	ctxRole
	ctxExtension
)

func WithIdentity(ctx context.Context, claims Claims) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, claims.UserID)
	ctx = context.WithValue(ctx, ctxAccountCode, claims.AccountCode)
	ctx = context.WithValue(ctx, ctxRole, claims.Role)
	ctx = context.WithValue(ctx, ctxExtension, claims.Extension)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func AccountCode(ctx context.Context) (string, error) {
	v := ctx.Value(ctxAccountCode)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("account_code not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// Extension is empty for non-agent callers; that is not an error.
func Extension(ctx context.Context) string {
	v := ctx.Value(ctxExtension)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
