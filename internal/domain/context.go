package domain

import "context"

// contextKey is a private type so context values cannot collide with other
// packages.
type contextKey string

const tenantIDKey contextKey = "tenant_id"

// WithTenantID stores the calling tenant's id on the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext returns the tenant id set by the HTTP middleware, or ""
// if the request was not tenant-scoped.
func TenantIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantIDKey).(string); ok {
		return v
	}
	return ""
}
