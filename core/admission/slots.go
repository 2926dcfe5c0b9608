package admission

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotGrants = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgrid_admission_grants_total",
		Help: "Number of successful slot acquisitions.",
	})
	slotRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgrid_admission_rejections_total",
		Help: "Number of slot acquisitions rejected because the user was at capacity.",
	})
	slotReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgrid_admission_releases_total",
		Help: "Number of slot releases.",
	})
)

// SlotKey returns the ledger key for a user's slot counter.
func SlotKey(userID string) string {
	return "user:" + userID + ":slots"
}

// SlotManager is the per-user admission ledger. Acquire must be atomic
// under contention: it never grants more than the configured maximum of
// concurrently held slots per user and never grants spuriously.
type SlotManager interface {
	// Acquire attempts to take one slot for the user. Returns false when
	// the user is at capacity.
	Acquire(ctx context.Context, userID string) (bool, error)

	// Release returns one slot. Releasing with no outstanding acquire is a
	// no-op; the count never goes below zero.
	Release(ctx context.Context, userID string) error
}

// MemorySlots is an in-process SlotManager using a compare-and-swap loop
// over per-user atomic counters. Each worker process owns its own counter
// set; horizontal scale-out multiplies the effective per-user budget by the
// worker count, which matches the deployment model of one admission
// counter per worker.
type MemorySlots struct {
	maxPerUser int64

	mu       sync.Mutex
	counters map[string]*atomic.Int64
}

var _ SlotManager = (*MemorySlots)(nil)

// NewMemorySlots creates a ledger allowing maxPerUser concurrent slots per
// user. A non-positive maximum rejects every acquire.
func NewMemorySlots(maxPerUser int) *MemorySlots {
	return &MemorySlots{
		maxPerUser: int64(maxPerUser),
		counters:   make(map[string]*atomic.Int64),
	}
}

// counter returns the user's counter, creating it lazily on first use.
func (slots *MemorySlots) counter(userID string) *atomic.Int64 {
	slots.mu.Lock()
	defer slots.mu.Unlock()

	counter, exists := slots.counters[userID]
	if !exists {
		counter = &atomic.Int64{}
		slots.counters[userID] = counter
	}
	return counter
}

// Acquire takes one slot if the user is below capacity.
func (slots *MemorySlots) Acquire(_ context.Context, userID string) (bool, error) {
	counter := slots.counter(userID)

	for {
		current := counter.Load()
		if current >= slots.maxPerUser {
			slotRejections.Inc()
			return false, nil
		}
		if counter.CompareAndSwap(current, current+1) {
			slotGrants.Inc()
			return true, nil
		}
	}
}

// Release returns one slot, floored at zero.
func (slots *MemorySlots) Release(_ context.Context, userID string) error {
	counter := slots.counter(userID)

	for {
		current := counter.Load()
		if current <= 0 {
			return nil
		}
		if counter.CompareAndSwap(current, current-1) {
			slotReleases.Inc()
			return nil
		}
	}
}

// InFlight returns the user's current slot count. Exposed for tests and
// diagnostics.
func (slots *MemorySlots) InFlight(userID string) int {
	return int(slots.counter(userID).Load())
}

// Retry is the explicit "no slot available" decision returned to the outer
// task runner, which re-queues the dispatcher task after the delay.
type Retry struct {
	After time.Duration
}

const (
	retryBase   = 6 * time.Second
	retryJitter = 3 * time.Second
)

// RetryDelay returns a randomized re-queue delay of base 6s +/- 3s. The
// jitter spreads retries from contending dispatcher tasks so a released
// slot is not stampeded.
func RetryDelay() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(2*retryJitter))) - retryJitter
	return retryBase + jitter
}
