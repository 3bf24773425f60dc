// Package retry wraps units of enrichment work with bounded exponential
// backoff and error-class-based retry eligibility.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/patchflow/patchflow/internal/cache"
)

// Controller holds retry configuration for enrichment work
type Controller struct {
	MaxRetries int           // Maximum number of retries after the first attempt (default: 3)
	BaseDelay  time.Duration // Initial backoff duration (default: 1s)
	MaxDelay   time.Duration // Maximum backoff duration (default: 30s)
	Multiplier float64       // Backoff multiplier (default: 2.0)

	log   logrus.FieldLogger
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a controller with the default configuration
func New() *Controller {
	return &Controller{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		log:        logrus.StandardLogger(),
		sleep:      sleepCtx,
	}
}

// WithLogger overrides the controller's logger
func (c *Controller) WithLogger(log logrus.FieldLogger) *Controller {
	c.log = log
	return c
}

// WithSleep overrides the backoff sleep primitive (used in tests)
func (c *Controller) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Controller {
	c.sleep = sleep
	return c
}

// Delay returns the backoff before retry n (1-indexed):
//
//	min(BaseDelay * Multiplier^(n-1), MaxDelay)
func (c *Controller) Delay(n int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(n-1)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do executes an operation with retry and exponential backoff.
//
// Before every attempt the result cache is consulted under the given
// fingerprint key; a hit bypasses the work entirely and is returned with no
// side effects. A successful attempt populates the cache. Non-retryable
// errors and exhausted attempts propagate; the backoff sleep suspends only
// this call, never the rest of the system.
func Do[V any](ctx context.Context, c *Controller, results *cache.Cache[V], key, operation string, fn func(context.Context) (V, error)) (V, error) {
	var zero V
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if results != nil {
			if v, ok := results.Get(key); ok {
				c.log.WithFields(logrus.Fields{
					"operation": operation,
					"key":       key,
				}).Debug("result cache hit, bypassing work")
				return v, nil
			}
		}

		v, err := fn(ctx)
		if err == nil {
			if results != nil {
				results.Put(key, v)
			}
			if attempt > 0 {
				c.log.WithFields(logrus.Fields{
					"operation": operation,
					"retries":   attempt,
				}).Info("operation succeeded after retries")
			}
			return v, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			c.log.WithFields(logrus.Fields{
				"operation": operation,
				"error":     err,
			}).Warn("non-retryable error, giving up")
			return zero, err
		}

		if attempt == c.MaxRetries {
			break
		}

		delay := c.Delay(attempt + 1)
		c.log.WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
			"max":       c.MaxRetries + 1,
			"delay":     delay,
			"error":     err,
		}).Info("retrying after backoff")

		if err := c.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s aborted during backoff: %w", operation, err)
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, c.MaxRetries+1, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryableMarkers are the transient-network error categories eligible for
// backoff retry: reset, timeout, DNS failure, refused, unreachable, aborted.
var retryableMarkers = []string{
	"connection reset",
	"econnreset",
	"timeout",
	"timed out",
	"etimedout",
	"no such host",
	"dns",
	"enotfound",
	"connection refused",
	"econnrefused",
	"unreachable",
	"ehostunreach",
	"enetunreach",
	"connection aborted",
	"econnaborted",
}

// IsRetryable determines if an error is a transient network failure worth
// retrying. Validation and collaborator errors are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
