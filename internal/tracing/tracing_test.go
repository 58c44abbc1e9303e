package tracing

import (
	"context"
	"testing"
)

func TestStartSpan_DisabledIsNoop(t *testing.T) {
	if err := Init(false, "test"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "stage")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("expected an invalid span context when tracing is disabled")
	}
	if TraceID(ctx) != "" {
		t.Errorf("expected empty trace id, got %q", TraceID(ctx))
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
