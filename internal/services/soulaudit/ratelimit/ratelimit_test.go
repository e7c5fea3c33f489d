package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := store.CheckAndIncrement(ctx, NamespaceSubmit, "client-a", 3, Window)
		if err != nil {
			t.Fatalf("CheckAndIncrement: %v", err)
		}
		if !d.OK {
			t.Fatalf("request %d denied inside limit", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Fatalf("remaining = %d, want %d", d.Remaining, 3-(i+1))
		}
	}

	d, err := store.CheckAndIncrement(ctx, NamespaceSubmit, "client-a", 3, Window)
	if err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}
	if d.OK {
		t.Fatal("4th request allowed over limit")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > Window {
		t.Fatalf("RetryAfter = %v", d.RetryAfter)
	}
	if !d.ResetAt.Equal(now.Add(Window)) {
		t.Fatalf("ResetAt = %v, want %v", d.ResetAt, now.Add(Window))
	}

	// Window elapse resets the counter.
	now = now.Add(Window)
	d, err = store.CheckAndIncrement(ctx, NamespaceSubmit, "client-a", 3, Window)
	if err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}
	if !d.OK || d.Remaining != 2 {
		t.Fatalf("post-window decision = %+v", d)
	}
}

func TestMemoryStoreIsolatesNamespacesAndKeys(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.CheckAndIncrement(ctx, NamespaceSubmit, "client-a", 2, Window); err != nil {
			t.Fatalf("CheckAndIncrement: %v", err)
		}
	}
	if d, _ := store.CheckAndIncrement(ctx, NamespaceSubmit, "client-a", 2, Window); d.OK {
		t.Fatal("exhausted bucket still allowing")
	}
	if d, _ := store.CheckAndIncrement(ctx, NamespaceConsent, "client-a", 2, Window); !d.OK {
		t.Fatal("different namespace blocked by exhausted bucket")
	}
	if d, _ := store.CheckAndIncrement(ctx, NamespaceSubmit, "client-b", 2, Window); !d.OK {
		t.Fatal("different key blocked by exhausted bucket")
	}
}

func TestMemoryStoreConcurrentCeiling(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	const limit = 10
	const workers = 50

	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.CheckAndIncrement(ctx, NamespaceRead, "shared", limit, Window)
			if err != nil {
				t.Errorf("CheckAndIncrement: %v", err)
				return
			}
			if d.OK {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	var passed int
	for range allowed {
		passed++
	}
	if passed != limit {
		t.Fatalf("passed = %d, want exactly %d", passed, limit)
	}
}
