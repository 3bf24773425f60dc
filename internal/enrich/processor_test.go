package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchflow/patchflow/internal/clock"
	"github.com/patchflow/patchflow/internal/retry"
	"github.com/patchflow/patchflow/internal/types"
	"github.com/patchflow/patchflow/internal/window"
)

func openGate() *window.Gate {
	return window.New("09:00", "17:00", "UTC").
		WithClock(clock.NewFake(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)))
}

func closedGate() *window.Gate {
	return window.New("09:00", "17:00", "UTC").
		WithClock(clock.NewFake(time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC)))
}

func fastRetry() *retry.Controller {
	return retry.New().WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
}

func newTestProcessor(t *testing.T, analysis *fakeAnalysis, gate *window.Gate) *Processor {
	t.Helper()
	pipeline, _, _ := newTestPipeline(t, analysis, &fakeSearcher{})
	p, err := NewProcessor(&ProcessorConfig{
		Pipeline: pipeline,
		Gate:     gate,
		Retry:    fastRetry(),
	})
	require.NoError(t, err)
	return p
}

func TestProcessRunsInsideWindow(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	p := newTestProcessor(t, analysis, openGate())

	report, err := p.Process(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, report.Outcome)
	require.NotNil(t, report.Result)
	assert.True(t, report.Result.Succeeded())
}

func TestProcessQueuesOutsideWindow(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	p := newTestProcessor(t, analysis, closedGate())

	report, err := p.Process(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, report.Outcome)
	assert.NotEmpty(t, report.QueueID)
	assert.Len(t, p.PendingItems(), 1)
	assert.Equal(t, 0, analysis.calls(), "no pipeline work outside the window")
}

func TestProcessValidationFailsFast(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	p := newTestProcessor(t, analysis, openGate())

	_, err := p.Process(context.Background(), types.Submission{Subject: "", Description: "d"})
	require.Error(t, err)
	assert.Empty(t, p.PendingItems(), "invalid submissions are never queued")
	assert.Empty(t, p.FailedItems())
}

func TestProcessExhaustedRetriesLandOnFailedQueue(t *testing.T) {
	analysis := &fakeAnalysis{keywordErr: errors.New("dial tcp: connection refused")}
	p := newTestProcessor(t, analysis, openGate())

	report, err := p.Process(context.Background(), testSubmission())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome)

	failed := p.FailedItems()
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Retryable)
	assert.Contains(t, failed[0].Error, "connection refused")
	assert.Equal(t, 4, analysis.calls(), "initial attempt plus three retries")
}

func TestProcessNonRetryableFailureSkipsBackoff(t *testing.T) {
	analysis := &fakeAnalysis{keywordErr: errors.New("malformed response")}
	p := newTestProcessor(t, analysis, openGate())

	report, err := p.Process(context.Background(), testSubmission())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, 1, analysis.calls())

	failed := p.FailedItems()
	require.Len(t, failed, 1)
	assert.False(t, failed[0].Retryable)
}

func TestProcessCacheShortCircuitsIdenticalInput(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	p := newTestProcessor(t, analysis, openGate())

	_, err := p.Process(context.Background(), testSubmission())
	require.NoError(t, err)

	report, err := p.Process(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, report.Outcome)
	assert.Equal(t, 1, analysis.calls(), "identical input served from the result cache")
}

func TestProcessDifferentTagsBypassCache(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	p := newTestProcessor(t, analysis, openGate())

	first := testSubmission()
	first.Tags = []string{"alpha"}
	_, err := p.Process(context.Background(), first)
	require.NoError(t, err)

	second := testSubmission()
	second.Tags = []string{"omega"}
	report, err := p.Process(context.Background(), second)
	require.NoError(t, err)
	require.NotNil(t, report.Result)
	assert.Contains(t, report.Result.Keywords.Terms, "omega", "own tags reach the result despite identical text")
	assert.Equal(t, 2, analysis.calls(), "different tags must not share a cache entry")

	// Same tags in a different case and order still hit the cache
	third := testSubmission()
	third.Tags = []string{"Omega"}
	_, err = p.Process(context.Background(), third)
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.calls(), "tag folding keeps equivalent submissions cacheable")
}

func TestRetryFailedResubmitsThroughFullPipeline(t *testing.T) {
	analysis := &fakeAnalysis{keywordErr: errors.New("connection reset by peer")}
	p := newTestProcessor(t, analysis, openGate())

	_, err := p.Process(context.Background(), testSubmission())
	require.Error(t, err)
	failed := p.FailedItems()
	require.Len(t, failed, 1)

	// The collaborator recovers; replay must run the whole entry flow again
	analysis.keywordErr = nil
	analysis.keywords = []string{"retry"}

	report, err := p.RetryFailed(context.Background(), failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, report.Outcome)
	assert.Empty(t, p.FailedItems(), "replayed item removed from the failed queue")
}

func TestRetryFailedUnknownID(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	p := newTestProcessor(t, analysis, openGate())

	_, err := p.RetryFailed(context.Background(), "no-such-id")
	assert.Error(t, err)
}

func TestClearFailed(t *testing.T) {
	analysis := &fakeAnalysis{keywordErr: errors.New("timeout")}
	p := newTestProcessor(t, analysis, openGate())

	_, _ = p.Process(context.Background(), testSubmission())
	require.NotEmpty(t, p.FailedItems())

	p.ClearFailed()
	assert.Empty(t, p.FailedItems())
}

func TestProcessPendingDrainsWhenWindowOpens(t *testing.T) {
	analysis := &fakeAnalysis{keywords: []string{"retry"}}
	fake := clock.NewFake(time.Date(2025, 6, 15, 20, 0, 0, 0, time.UTC))
	gate := window.New("09:00", "17:00", "UTC").WithClock(fake)
	p := newTestProcessor(t, analysis, gate)

	sub := testSubmission()
	report, err := p.Process(context.Background(), sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, report.Outcome)

	other := testSubmission()
	other.ID = "sub-2"
	other.Subject = "Priority scheduling under contention"
	_, err = p.Process(context.Background(), other)
	require.NoError(t, err)
	require.Len(t, p.PendingItems(), 2)

	// Window opens the next morning
	fake.Set(time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC))
	processed := p.ProcessPending(context.Background())
	assert.Equal(t, 2, processed)
	assert.Empty(t, p.PendingItems())
}
