package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryClaimRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("doc-1")

	if err := l.Claim(ctx, "doc-1", "2024-03-01", "10:00"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := l.Claim(ctx, "doc-1", "2024-03-01", "10:00"); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	// A different time on the same date is free.
	if err := l.Claim(ctx, "doc-1", "2024-03-01", "10:30"); err != nil {
		t.Fatalf("claim of free slot failed: %v", err)
	}

	if err := l.Release(ctx, "doc-1", "2024-03-01", "10:00"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	// Released slot can be claimed again.
	if err := l.Claim(ctx, "doc-1", "2024-03-01", "10:00"); err != nil {
		t.Fatalf("re-claim after release failed: %v", err)
	}
}

func TestMemoryReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("doc-1")

	if err := l.Claim(ctx, "doc-1", "2024-03-01", "10:00"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := l.Release(ctx, "doc-1", "2024-03-01", "10:00"); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if err := l.Release(ctx, "doc-1", "2024-03-01", "10:00"); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
	if err := l.Release(ctx, "doc-1", "2099-01-01", "09:00"); err != nil {
		t.Fatalf("release of never-booked slot should be a no-op, got %v", err)
	}
}

func TestMemoryClaimUnknownDoctor(t *testing.T) {
	l := NewMemory()
	if err := l.Claim(context.Background(), "nope", "2024-03-01", "10:00"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestMemoryConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("doc-1")

	const n = 64
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Claim(ctx, "doc-1", "2024-03-01", "10:00")
		}()
	}
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotTaken):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != n-1 {
		t.Fatalf("expected exactly one winner, got won=%d lost=%d", won, lost)
	}
}

func TestMemoryBookedSnapshot(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("doc-1")

	_ = l.Claim(ctx, "doc-1", "2024-03-01", "10:00")
	_ = l.Claim(ctx, "doc-1", "2024-03-02", "11:30")

	booked, err := l.Booked(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Booked failed: %v", err)
	}
	if len(booked["2024-03-01"]) != 1 || len(booked["2024-03-02"]) != 1 {
		t.Fatalf("unexpected snapshot: %+v", booked)
	}
	if _, err := l.Booked(ctx, "ghost"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}
