package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchflow/patchflow/internal/cache"
)

func newTestController() (*Controller, *[]time.Duration) {
	var delays []time.Duration
	c := New().WithLogger(logrus.New()).WithSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	return c, &delays
}

func TestDelaySequence(t *testing.T) {
	c := New()
	assert.Equal(t, 1*time.Second, c.Delay(1))
	assert.Equal(t, 2*time.Second, c.Delay(2))
	assert.Equal(t, 4*time.Second, c.Delay(3))
	assert.Equal(t, 8*time.Second, c.Delay(4))
}

func TestDelayCappedAtMax(t *testing.T) {
	c := New()
	assert.Equal(t, 30*time.Second, c.Delay(6), "2^5 = 32s capped to 30s")
	assert.Equal(t, 30*time.Second, c.Delay(10))
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	c, delays := newTestController()

	calls := 0
	got, err := Do(context.Background(), c, nil, "k", "work", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	c, delays := newTestController()

	calls := 0
	got, err := Do(context.Background(), c, nil, "k", "work", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset by peer")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *delays)
}

func TestDoExhaustsRetries(t *testing.T) {
	c, delays := newTestController()

	calls := 0
	_, err := Do(context.Background(), c, nil, "k", "work", func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("dial tcp: i/o timeout")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, 4, calls, "initial attempt plus 3 retries")
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, *delays,
		"backoff sequence 1000, 2000, 4000 ms")
}

func TestDoDoesNotRetryNonRetryableErrors(t *testing.T) {
	c, delays := newTestController()

	calls := 0
	_, err := Do(context.Background(), c, nil, "k", "work", func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("validation failed: subject is required")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDoCacheHitBypassesWork(t *testing.T) {
	c, _ := newTestController()
	results := cache.New[string](time.Minute)
	results.Put("k", "cached")

	calls := 0
	got, err := Do(context.Background(), c, results, "k", "work", func(ctx context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", got)
	assert.Equal(t, 0, calls, "cache hit must bypass the work entirely")
}

func TestDoPopulatesCacheOnSuccess(t *testing.T) {
	c, _ := newTestController()
	results := cache.New[string](time.Minute)

	_, err := Do(context.Background(), c, results, "k", "work", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)

	got, ok := results.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "fresh", got)
}

func TestDoConsultsCacheBeforeEachAttempt(t *testing.T) {
	c, _ := newTestController()
	results := cache.New[string](time.Minute)

	// Another worker fills the cache while this one is backing off
	calls := 0
	c.WithSleep(func(ctx context.Context, d time.Duration) error {
		results.Put("k", "filled-by-peer")
		return nil
	})

	got, err := Do(context.Background(), c, results, "k", "work", func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})
	require.NoError(t, err)
	assert.Equal(t, "filled-by-peer", got)
	assert.Equal(t, 1, calls, "second attempt short-circuited by the cache")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("dial tcp: i/o timeout"), true},
		{"dns", errors.New("lookup api.example.com: no such host"), true},
		{"refused", errors.New("dial tcp 127.0.0.1:443: connection refused"), true},
		{"unreachable", errors.New("connect: network is unreachable"), true},
		{"aborted", errors.New("econnaborted: software caused connection abort"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped transient", fmt.Errorf("search failed: %w", errors.New("connection refused")), true},
		{"validation", errors.New("subject is required"), false},
		{"collaborator", errors.New("merge conflict on branch"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
