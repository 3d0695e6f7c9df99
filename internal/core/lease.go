package core

// lease.go serializes refreshes per tool.
//
// Each tool gets a weighted semaphore of size one. A caller that finds the
// lease taken waits up to maxWait before failing with ErrRefreshBusy. Leases
// of different tools never block each other.

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLeaseWait is how long a refresh waits for a running one to finish.
const DefaultLeaseWait = 2 * time.Minute

// Leases holds one refresh lease per tool.
type Leases struct {
	maxWait time.Duration

	mu     sync.Mutex
	sems   map[string]*semaphore.Weighted
	active map[string]bool
}

// NewLeases creates a lease table with the given wait limit.
func NewLeases(maxWait time.Duration) *Leases {
	if maxWait <= 0 {
		maxWait = DefaultLeaseWait
	}
	return &Leases{
		maxWait: maxWait,
		sems:    make(map[string]*semaphore.Weighted),
		active:  make(map[string]bool),
	}
}

func (l *Leases) sem(toolID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[toolID]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.sems[toolID] = s
	}
	return s
}

// Acquire takes the lease for toolID. The returned release func must be
// called exactly once.
func (l *Leases) Acquire(ctx context.Context, toolID string) (release func(), err error) {
	s := l.sem(toolID)

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := s.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrRefreshBusy
	}

	l.setActive(toolID, true)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.setActive(toolID, false)
			s.Release(1)
		})
	}, nil
}

// TryAcquire takes the lease without waiting.
func (l *Leases) TryAcquire(toolID string) (release func(), ok bool) {
	s := l.sem(toolID)
	if !s.TryAcquire(1) {
		return nil, false
	}
	l.setActive(toolID, true)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.setActive(toolID, false)
			s.Release(1)
		})
	}, true
}

func (l *Leases) setActive(toolID string, v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v {
		l.active[toolID] = true
	} else {
		delete(l.active, toolID)
	}
}

// Refreshing reports whether a refresh of toolID holds the lease.
func (l *Leases) Refreshing(toolID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[toolID]
}

// ActiveCount returns how many tools are being refreshed.
func (l *Leases) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// WaitForDrain blocks until no lease is held or ctx is done. Used during
// shutdown.
func (l *Leases) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
