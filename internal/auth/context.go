package auth

import (
	"context"
	"time"
)

// Admin is the principal stored in an authenticated admin session.
type Admin struct {
	UserID      int64
	DisplayName string
	Role        Role
	LoginAt     time.Time
}

type adminContextKey struct{}

// ContextWithAdmin attaches the signed-in admin to the context.
func ContextWithAdmin(ctx context.Context, admin Admin) context.Context {
	return context.WithValue(ctx, adminContextKey{}, &admin)
}

// AdminFromContext extracts the signed-in admin from the context.
func AdminFromContext(ctx context.Context) (Admin, bool) {
	if ctx == nil {
		return Admin{}, false
	}
	v, ok := ctx.Value(adminContextKey{}).(*Admin)
	if !ok || v == nil {
		return Admin{}, false
	}
	return *v, true
}
