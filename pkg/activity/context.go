package activity

import (
	"context"
	"strings"
)

type contextKey int

const (
	actorKey contextKey = iota
	tenantKey
)

// WithActor records the identity that triggered the work carried by ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, strings.TrimSpace(actorID))
}

// WithTenant records the tenant the work carried by ctx belongs to.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantKey, strings.TrimSpace(tenantID))
}

// ActorFromContext returns the actor recorded with WithActor.
func ActorFromContext(ctx context.Context) string {
	return stringFromContext(ctx, actorKey)
}

// TenantFromContext returns the tenant recorded with WithTenant.
func TenantFromContext(ctx context.Context) string {
	return stringFromContext(ctx, tenantKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
