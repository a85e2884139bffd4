package common

import "context"

type ctxKey string

const (
	userIDKey   ctxKey = "auth/user-id"
	identityKey ctxKey = "auth/identity"
)

type identity struct {
	userID string
}

// WithIdentity attaches a request-wide identity slot. Middleware that runs
// before authentication reads the caller from it once the chain returns.
func WithIdentity(ctx context.Context) context.Context {
	if _, ok := ctx.Value(identityKey).(*identity); ok {
		return ctx
	}
	return context.WithValue(ctx, identityKey, &identity{})
}

// WithUserID stores the authenticated user identifier on the provided context
// and records it in the identity slot when one is present.
func WithUserID(ctx context.Context, id string) context.Context {
	if slot, ok := ctx.Value(identityKey).(*identity); ok {
		slot.userID = id
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id, true
	}
	if slot, ok := ctx.Value(identityKey).(*identity); ok && slot.userID != "" {
		return slot.userID, true
	}
	return "", false
}
