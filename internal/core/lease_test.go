package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLeases_AcquireRelease(t *testing.T) {
	l := NewLeases(time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "elw")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !l.Refreshing("elw") || l.ActiveCount() != 1 {
		t.Error("lease should be active")
	}

	// Other tools are independent.
	other, err := l.Acquire(ctx, "domestic_bond")
	if err != nil {
		t.Fatalf("Acquire(other tool) error = %v", err)
	}
	other()

	release()
	release()
	if l.Refreshing("elw") || l.ActiveCount() != 0 {
		t.Error("lease should be released")
	}
}

func TestLeases_BusyAfterWait(t *testing.T) {
	l := NewLeases(50 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "elw")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	start := time.Now()
	if _, err := l.Acquire(ctx, "elw"); !errors.Is(err, ErrRefreshBusy) {
		t.Errorf("second Acquire() error = %v, want ErrRefreshBusy", err)
	}
	if waited := time.Since(start); waited < 40*time.Millisecond {
		t.Errorf("second Acquire() returned after %v, should wait", waited)
	}

	if _, ok := l.TryAcquire("elw"); ok {
		t.Error("TryAcquire() should fail while held")
	}
}

func TestLeases_ContextCancellation(t *testing.T) {
	l := NewLeases(time.Minute)
	release, _ := l.Acquire(context.Background(), "elw")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "elw"); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestLeases_Serializes(t *testing.T) {
	l := NewLeases(5 * time.Second)
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "domestic_stock")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen.Load())
	}
}

func TestLeases_WaitForDrain(t *testing.T) {
	l := NewLeases(time.Second)
	release, _ := l.Acquire(context.Background(), "elw")

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain() error = %v", err)
	}

	if NewLeases(0).maxWait != DefaultLeaseWait {
		t.Error("zero wait should use the default")
	}
}
