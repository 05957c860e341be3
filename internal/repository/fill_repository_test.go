package repository

import (
	"context"
	"testing"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func TestFillInsertBatch(t *testing.T) {
	pool := &fakePool{}
	repo := NewFillRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	fills := []domain.FillRecord{
		{TicketID: "tkt-1", Asset: "BTC", Price: 50000, Quantity: 0.5, Mark: 50010, Deviation: 0.0002, FillTS: testTime},
		{TicketID: "tkt-2", Asset: "ETH", Price: 2500, Quantity: 2, Mark: 2498, Deviation: 0.0008, FillTS: testTime},
	}
	if err := repo.InsertBatch(context.Background(), fills); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.lastBatch == nil || pool.lastBatch.Len() != 2 {
		t.Fatalf("expected batch of 2, got %+v", pool.lastBatch)
	}
}

func TestFillInsertBatchEmpty(t *testing.T) {
	pool := &fakePool{}
	repo := NewFillRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.lastBatch != nil {
		t.Fatal("empty input should not send a batch")
	}
}

func TestFillRecentFeatures(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{data: [][]any{
		{0.0002, 0.5},
		{0.01, 2.0},
	}}}
	repo := NewFillRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	feats, err := repo.RecentFeatures(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feats) != 2 || feats[0][0] != 0.0002 || feats[1][1] != 2.0 {
		t.Fatalf("unexpected features: %+v", feats)
	}
	if pool.lastArgs[0] != 500 {
		t.Fatalf("expected default limit 500, got %v", pool.lastArgs)
	}
}
