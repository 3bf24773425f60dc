// Package notify buffers outbound notifications per event category and
// flushes each buffer on a fixed schedule, suppressing everything outside
// the operational window. Delivery itself is pluggable: the notifier only
// decides when a batch goes out, never how.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/patchflow/patchflow/internal/window"
)

// Category classifies a notification for buffering and flush scheduling
type Category string

const (
	CategoryProposal Category = "proposal"
	CategoryApproval Category = "approval"
	CategoryBuild    Category = "build"
	CategoryError    Category = "error"
	CategoryLearning Category = "learning"
	CategoryQuota    Category = "quota"
	CategoryTest     Category = "test"
)

// categories is the fixed set of known buffer keys
var categories = []Category{
	CategoryProposal,
	CategoryApproval,
	CategoryBuild,
	CategoryError,
	CategoryLearning,
	CategoryQuota,
	CategoryTest,
}

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Notification is one outbound message
type Notification struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Category Category `json:"category"`
	UserID   string   `json:"user_id,omitempty"`
}

// Sender delivers a flushed batch. Implementations own the transport.
type Sender interface {
	SendBatch(ctx context.Context, category Category, batch []Notification) error
}

const (
	// DefaultFlushInterval is how long a category buffer sits before flushing
	DefaultFlushInterval = 30 * time.Second

	// connectedInterval limits "connected" notifications to one per 4 hours
	connectedInterval = 4 * time.Hour
)

// Notifier buffers notifications per category. Each buffer gets its own
// resettable flush timer: the timer arms when the first message lands in an
// empty buffer and every flush drains the whole buffer at once. Outside the
// operational window nothing is buffered or delivered.
type Notifier struct {
	sender        Sender
	gate          *window.Gate
	flushInterval time.Duration
	log           logrus.FieldLogger

	connectedLimit *rate.Limiter

	mu       sync.Mutex
	buffers  map[Category][]Notification
	timers   map[Category]*time.Timer
	connErrs int
	closed   bool
}

// Config holds notifier construction parameters
type Config struct {
	Sender        Sender
	Gate          *window.Gate
	FlushInterval time.Duration      // optional, defaults to DefaultFlushInterval
	Logger        logrus.FieldLogger // optional
}

// New creates a notifier
func New(cfg *Config) (*Notifier, error) {
	if cfg.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("window gate is required")
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Notifier{
		sender:         cfg.Sender,
		gate:           cfg.Gate,
		flushInterval:  interval,
		log:            log,
		connectedLimit: rate.NewLimiter(rate.Every(connectedInterval), 1),
		buffers:        make(map[Category][]Notification),
		timers:         make(map[Category]*time.Timer),
	}, nil
}

// Send buffers one notification for its category. Fire and forget: errors
// surface through logs at flush time, never to the caller. Outside the
// operational window the notification is dropped.
func (n *Notifier) Send(notification Notification) {
	if !notification.Category.IsValid() {
		notification.Category = CategoryError
	}
	if !n.gate.Open() {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	cat := notification.Category
	n.buffers[cat] = append(n.buffers[cat], notification)

	// Arm the flush timer on the first message into an empty buffer
	if len(n.buffers[cat]) == 1 {
		n.armLocked(cat)
	}
}

// armLocked schedules the category's next flush. Caller holds mu.
func (n *Notifier) armLocked(cat Category) {
	if t, ok := n.timers[cat]; ok {
		t.Reset(n.flushInterval)
		return
	}
	n.timers[cat] = time.AfterFunc(n.flushInterval, func() {
		n.Flush(context.Background(), cat)
	})
}

// RecordConnectionError counts a connection failure toward the next
// "connected" notification's rolling total
func (n *Notifier) RecordConnectionError() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connErrs++
}

// SendConnected emits the "connected" notification, rate-limited to once
// per 4 hours. The message carries the number of connection errors seen
// since the previous send; the counter resets on delivery. Returns whether
// a notification was actually produced.
func (n *Notifier) SendConnected(ctx context.Context) bool {
	if !n.connectedLimit.Allow() {
		return false
	}

	n.mu.Lock()
	errs := n.connErrs
	n.connErrs = 0
	n.mu.Unlock()

	body := "connection established"
	if errs > 0 {
		body = fmt.Sprintf("connection established (%d connection errors since last notice)", errs)
	}
	batch := []Notification{{
		Title:    "connected",
		Body:     body,
		Category: CategoryError,
	}}
	if err := n.sender.SendBatch(ctx, CategoryError, batch); err != nil {
		n.log.WithField("error", err).Warn("failed to send connected notification")
		return false
	}
	return true
}

// Flush delivers one category's buffered notifications immediately.
// Suppressed outside the operational window: the buffer is kept and the
// flush timer re-armed, so delivery retries each interval until the
// window reopens.
func (n *Notifier) Flush(ctx context.Context, cat Category) {
	if !n.gate.Open() {
		n.mu.Lock()
		if !n.closed && len(n.buffers[cat]) > 0 {
			n.armLocked(cat)
		}
		n.mu.Unlock()
		return
	}

	n.mu.Lock()
	batch := n.buffers[cat]
	delete(n.buffers, cat)
	n.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := n.sender.SendBatch(ctx, cat, batch); err != nil {
		n.log.WithFields(logrus.Fields{
			"category": cat,
			"count":    len(batch),
			"error":    err,
		}).Warn("notification flush failed")
		return
	}
	n.log.WithFields(logrus.Fields{
		"category": cat,
		"count":    len(batch),
	}).Debug("notifications flushed")
}

// Pending returns how many notifications are buffered for a category
func (n *Notifier) Pending(cat Category) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.buffers[cat])
}

// Close stops all flush timers and drains every non-empty buffer, gated
// by the operational window like any flush: buffers held at shutdown
// outside the window are dropped, not delivered. After Close the notifier
// drops all further sends.
func (n *Notifier) Close(ctx context.Context) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	for _, t := range n.timers {
		t.Stop()
	}
	remaining := n.buffers
	n.buffers = make(map[Category][]Notification)
	n.mu.Unlock()

	if !n.gate.Open() {
		total := 0
		for _, batch := range remaining {
			total += len(batch)
		}
		if total > 0 {
			n.log.WithField("count", total).Warn("operational window closed at shutdown, dropping buffered notifications")
		}
		return
	}

	for cat, batch := range remaining {
		if len(batch) == 0 {
			continue
		}
		if err := n.sender.SendBatch(ctx, cat, batch); err != nil {
			n.log.WithFields(logrus.Fields{
				"category": cat,
				"count":    len(batch),
				"error":    err,
			}).Warn("shutdown flush failed")
		}
	}
}
