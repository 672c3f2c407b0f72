package cqrs_test

import (
	"testing"

	cqrs "github.com/emberfall/cqrs"
)

func TestTypeName(t *testing.T) {
	if got := cqrs.TypeName(OrderCreated{}); got != "cqrs_test.OrderCreated" {
		t.Errorf("unexpected name for value type: %q", got)
	}
	if got := cqrs.TypeName(&OrderCreated{}); got != "*cqrs_test.OrderCreated" {
		t.Errorf("unexpected name for pointer type: %q", got)
	}
}
