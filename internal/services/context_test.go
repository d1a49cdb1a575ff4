package services_test

import (
	"context"
	"testing"

	"treegift/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithStep(ctx, "payment")
	ctx = services.WithCorrelationID(ctx, "abc")

	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "payment" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if cid, ok := services.CorrelationIDFromContext(ctx); !ok || cid != "abc" {
		t.Fatalf("unexpected correlation id: %v %v", cid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	if services.WithStep(ctx, "") != ctx {
		t.Fatal("empty step should return the same context")
	}
	if services.WithRequestID(ctx, "") != ctx {
		t.Fatal("empty request id should return the same context")
	}
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
}
