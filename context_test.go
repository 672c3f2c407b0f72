package cqrs_test

import (
	"context"
	"testing"

	cqrs "github.com/emberfall/cqrs"
)

func TestTenantFromContext_DefaultsWhenUnset(t *testing.T) {
	if tenant := cqrs.TenantFromContext(context.Background()); tenant != cqrs.DefaultTenant {
		t.Errorf("expected %q, got %q", cqrs.DefaultTenant, tenant)
	}
}

func TestWithTenant_RoundTrip(t *testing.T) {
	ctx := cqrs.WithTenant(context.Background(), "acme")

	if tenant := cqrs.TenantFromContext(ctx); tenant != "acme" {
		t.Errorf("expected acme, got %q", tenant)
	}
}

func TestWithTenant_EmptyFallsBackToDefault(t *testing.T) {
	ctx := cqrs.WithTenant(context.Background(), "")

	if tenant := cqrs.TenantFromContext(ctx); tenant != cqrs.DefaultTenant {
		t.Errorf("expected %q for empty tenant, got %q", cqrs.DefaultTenant, tenant)
	}
}
