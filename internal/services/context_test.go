package services_test

import (
	"context"
	"testing"

	"limner/internal/services"
)

func TestContextCarriers(t *testing.T) {
	ctx := context.Background()

	if _, ok := services.DocumentIDFromContext(ctx); ok {
		t.Fatal("expected no document id on empty context")
	}

	ctx = services.WithDocumentID(ctx, "book-1")
	ctx = services.WithUnitID(ctx, "ch03")
	ctx = services.WithPhase(ctx, "analyze")

	if id, ok := services.DocumentIDFromContext(ctx); !ok || id != "book-1" {
		t.Fatalf("document id = %q, %v", id, ok)
	}
	if id, ok := services.UnitIDFromContext(ctx); !ok || id != "ch03" {
		t.Fatalf("unit id = %q, %v", id, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "analyze" {
		t.Fatalf("phase = %q, %v", phase, ok)
	}
}

func TestEmptyValuesIgnored(t *testing.T) {
	ctx := services.WithPhase(context.Background(), "")
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected empty phase to be dropped")
	}
}
