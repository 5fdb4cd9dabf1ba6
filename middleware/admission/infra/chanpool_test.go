package infra

import (
	"context"
	"testing"
	"time"
)

func TestChanPool_AcquireRelease(t *testing.T) {
	p := NewChanPool(2)

	r1, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first slot")
	}
	r2, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected second slot")
	}
	if p.InFlight() != 2 || p.Capacity() != 2 {
		t.Fatalf("unexpected pool state: inflight=%d cap=%d", p.InFlight(), p.Capacity())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected full pool to time out")
	}

	r1()
	r1() // release é idempotente
	if p.InFlight() != 1 {
		t.Fatalf("expected 1 in flight after double release, got %d", p.InFlight())
	}
	r2()
	if p.InFlight() != 0 {
		t.Fatalf("expected empty pool, got %d", p.InFlight())
	}
}
