// Package queue holds in-process work queues for enrichment submissions:
// a priority-ordered pending queue for work deferred by the operational
// window, and a failed queue retaining exhausted work for manual replay.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patchflow/patchflow/internal/clock"
	"github.com/patchflow/patchflow/internal/types"
)

// Priority increments. Each payload-shape signal contributes one fixed step.
const (
	priorityStep       = 1
	longDescriptionLen = 500
)

// ComputePriority derives a queue priority from the submission's shape:
// attached code, user tags, and a substantial description each add one step.
func ComputePriority(sub types.Submission) int {
	priority := 0
	if sub.Code != "" {
		priority += priorityStep
	}
	if len(sub.Tags) > 0 {
		priority += priorityStep
	}
	if len(sub.Description) > longDescriptionLen {
		priority += priorityStep
	}
	return priority
}

// PendingItem is a submission waiting for the operational window to open
type PendingItem struct {
	ID         string           `json:"id"`
	Submission types.Submission `json:"submission"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	Priority   int              `json:"priority"`
}

// Pending is a thread-safe priority queue. After every insert the whole
// queue is re-sorted descending by priority with a stable sort, so items of
// equal priority keep their original relative order.
type Pending struct {
	mu    sync.Mutex
	items []PendingItem
	clock clock.Clock
}

// NewPending creates an empty pending queue
func NewPending() *Pending {
	return &Pending{clock: clock.Real{}}
}

// WithClock overrides the queue's clock (used in tests)
func (q *Pending) WithClock(c clock.Clock) *Pending {
	q.clock = c
	return q
}

// Enqueue inserts a submission, computing its priority from the payload
// shape, and re-sorts the queue.
func (q *Pending) Enqueue(sub types.Submission) PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := PendingItem{
		ID:         uuid.New().String(),
		Submission: sub,
		EnqueuedAt: q.clock.Now(),
		Priority:   ComputePriority(sub),
	}
	q.items = append(q.items, item)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority > q.items[j].Priority
	})
	return item
}

// Dequeue removes and returns the highest-priority item
func (q *Pending) Dequeue() (PendingItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return PendingItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Items returns a snapshot of the queue in priority order
func (q *Pending) Items() []PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items
func (q *Pending) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// FailedItem is a submission whose processing exhausted its retries
type FailedItem struct {
	ID         string           `json:"id"`
	Submission types.Submission `json:"submission"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	Error      string           `json:"error"`
	Retryable  bool             `json:"retryable"`
}

// Failed is an append-only list of failed submissions retained for
// inspection or replay rather than being discarded.
type Failed struct {
	mu    sync.Mutex
	items []FailedItem
	clock clock.Clock
}

// NewFailed creates an empty failed queue
func NewFailed() *Failed {
	return &Failed{clock: clock.Real{}}
}

// WithClock overrides the queue's clock (used in tests)
func (q *Failed) WithClock(c clock.Clock) *Failed {
	q.clock = c
	return q
}

// Add appends a failed submission with its terminal error
func (q *Failed) Add(sub types.Submission, err error, retryable bool) FailedItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	item := FailedItem{
		ID:         uuid.New().String(),
		Submission: sub,
		EnqueuedAt: q.clock.Now(),
		Error:      msg,
		Retryable:  retryable,
	}
	q.items = append(q.items, item)
	return item
}

// Take removes and returns the item with the given ID. The caller re-submits
// the original payload through the full entry pipeline; there is no resume
// from partial progress.
func (q *Failed) Take(id string) (FailedItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item, true
		}
	}
	return FailedItem{}, false
}

// Items returns a snapshot of the failed queue in insertion order
func (q *Failed) Items() []FailedItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]FailedItem, len(q.items))
	copy(out, q.items)
	return out
}

// Clear empties the failed queue unconditionally
func (q *Failed) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Len returns the number of failed items
func (q *Failed) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
