package operator

import (
	"context"
	"testing"
)

func TestWithOperatorAndFromContext(t *testing.T) {
	ctx := WithOperator(context.Background(), "counselor-kim")

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected operator to be present")
	}
	if got != "counselor-kim" {
		t.Fatalf("expected counselor-kim, got %s", got)
	}
	if Actor(ctx) != "counselor-kim" {
		t.Fatalf("expected actor counselor-kim, got %s", Actor(ctx))
	}
}

func TestFromContext_EmptyOrMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected missing operator to return false")
	}
	if Actor(ctx) != System {
		t.Fatalf("expected system actor, got %s", Actor(ctx))
	}

	ctx = context.WithValue(ctx, operatorKey, 42)
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected non-string operator to return false")
	}

	ctx = WithOperator(context.Background(), "")
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("expected empty operator to return false")
	}
}
