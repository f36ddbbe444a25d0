// Package auctionlock hands out one serialization slot per auction id.
// Waiters on the same auction queue behind each other; different auctions
// never contend beyond the short bookkeeping section.
package auctionlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/utils"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Table tracks the slots of every auction currently held or awaited
type Table struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

// NewTable creates a Table whose Acquire gives up after timeout
func NewTable(timeout time.Duration) *Table {
	return &Table{
		slots:   make(map[string]*slot),
		timeout: timeout,
	}
}

// Acquire blocks until the caller owns auctionID's slot. It fails with
// biddingerrors.ErrTimeout when the table timeout elapses or ctx ends first.
// The returned release func is safe to call more than once.
func (t *Table) Acquire(ctx context.Context, auctionID string) (func(), error) {
	s := t.ref(auctionID)

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				t.unref(auctionID, s)
			})
		}, nil
	case <-ctx.Done():
		t.unref(auctionID, s)
		utils.LockWaitTimeoutsTotal.Inc()
		return nil, fmt.Errorf("acquire auction %s: %w: %v", auctionID, biddingerrors.ErrTimeout, ctx.Err())
	case <-timer.C:
		t.unref(auctionID, s)
		utils.LockWaitTimeoutsTotal.Inc()
		return nil, fmt.Errorf("acquire auction %s after %s: %w", auctionID, t.timeout, biddingerrors.ErrTimeout)
	}
}

// Held returns the number of auctions with a holder or waiter
func (t *Table) Held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

func (t *Table) ref(auctionID string) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[auctionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		t.slots[auctionID] = s
	}
	s.refs++
	return s
}

func (t *Table) unref(auctionID string, s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(t.slots, auctionID)
	}
}
