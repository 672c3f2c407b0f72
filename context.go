package cqrs

import (
	"context"
)

// DefaultTenant is the sentinel tenant used when no tenant is supplied,
// either on the envelope or through the context.
const DefaultTenant = "default"

type ctxKey string

const tenantKey ctxKey = "tenant"

// WithTenant returns a context carrying the given tenant identifier. The
// event store stamps it on envelopes saved without an explicit tenant.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// TenantFromContext returns the tenant carried by the context, or
// DefaultTenant if none is present.
func TenantFromContext(ctx context.Context) string {
	if v := ctx.Value(tenantKey); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DefaultTenant
}
