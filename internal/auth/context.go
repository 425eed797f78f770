package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey   ctxKey = "auth_user_id"
	tenantIDKey ctxKey = "auth_tenant_id"
)

// ContextWithIdentity stores the authenticated tenant/user pair in the context.
func ContextWithIdentity(ctx context.Context, tenantID, userID string) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, strings.TrimSpace(tenantID))
	return context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// TenantIDFromContext extracts the authenticated tenant ID from context.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tenantIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
