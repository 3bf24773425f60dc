package enrich

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/patchflow/patchflow/internal/cache"
	"github.com/patchflow/patchflow/internal/fingerprint"
	"github.com/patchflow/patchflow/internal/queue"
	"github.com/patchflow/patchflow/internal/retry"
	"github.com/patchflow/patchflow/internal/types"
	"github.com/patchflow/patchflow/internal/window"
)

// Outcome reports what happened to a submitted enrichment input
type Outcome string

const (
	// OutcomeProcessed means the pipeline ran (possibly from cache)
	OutcomeProcessed Outcome = "processed"
	// OutcomeQueued means the operational window was closed and the
	// submission was parked on the pending queue
	OutcomeQueued Outcome = "queued"
	// OutcomeFailed means retries were exhausted and the submission
	// landed on the failed queue
	OutcomeFailed Outcome = "failed"
)

// ProcessReport is returned for every submission handed to the processor
type ProcessReport struct {
	Outcome Outcome `json:"outcome"`
	Result  *Result `json:"result,omitempty"`
	QueueID string  `json:"queue_id,omitempty"`
}

// Processor owns the enrichment entry flow: validation, the operational
// window gate, the retry controller, the result cache, and both queues.
// All of these are constructed instances owned here, never globals, so
// tests can run isolated processors side by side.
type Processor struct {
	pipeline *Pipeline
	gate     *window.Gate
	results  *cache.Cache[*Result]
	retry    *retry.Controller
	pending  *queue.Pending
	failed   *queue.Failed
	sem      *semaphore.Weighted
	log      logrus.FieldLogger
}

// ProcessorConfig holds processor construction parameters
type ProcessorConfig struct {
	Pipeline      *Pipeline
	Gate          *window.Gate
	Retry         *retry.Controller  // optional, defaults to retry.New()
	CacheTTL      time.Duration      // optional, defaults to cache.DefaultTTL
	MaxConcurrent int64              // optional, defaults to 4
	Logger        logrus.FieldLogger // optional
}

// NewProcessor creates a processor with its own cache and queues
func NewProcessor(cfg *ProcessorConfig) (*Processor, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("window gate is required")
	}

	controller := cfg.Retry
	if controller == nil {
		controller = retry.New()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Processor{
		pipeline: cfg.Pipeline,
		gate:     cfg.Gate,
		results:  cache.New[*Result](cfg.CacheTTL),
		retry:    controller,
		pending:  queue.NewPending(),
		failed:   queue.NewFailed(),
		sem:      semaphore.NewWeighted(maxConcurrent),
		log:      log,
	}, nil
}

// Process runs one submission through the entry flow:
//
//	validate → window gate → (closed: pending queue) →
//	retry controller → result cache → pipeline → (exhausted: failed queue)
//
// Validation failures fail fast and are never queued. Multiple submissions
// may be processed concurrently up to the configured limit; steps within
// one submission stay sequential.
func (p *Processor) Process(ctx context.Context, sub types.Submission) (*ProcessReport, error) {
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	if !p.gate.Open() {
		item := p.pending.Enqueue(sub)
		p.log.WithFields(logrus.Fields{
			"submission": sub.ID,
			"queue_id":   item.ID,
			"priority":   item.Priority,
		}).Info("operational window closed, submission queued")
		return &ProcessReport{Outcome: OutcomeQueued, QueueID: item.ID}, nil
	}

	return p.run(ctx, sub)
}

// run executes the retry/cache/pipeline segment for an already-gated submission
func (p *Processor) run(ctx context.Context, sub types.Submission) (*ProcessReport, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire processing slot: %w", err)
	}
	defer p.sem.Release(1)

	key := cacheKey(sub)
	result, err := retry.Do(ctx, p.retry, p.results, key, "enrichment", func(ctx context.Context) (*Result, error) {
		return p.pipeline.Run(ctx, sub)
	})
	if err != nil {
		item := p.failed.Add(sub, err, retry.IsRetryable(err))
		p.log.WithFields(logrus.Fields{
			"submission": sub.ID,
			"queue_id":   item.ID,
			"error":      err,
		}).Warn("enrichment failed, submission moved to failed queue")
		return &ProcessReport{Outcome: OutcomeFailed, QueueID: item.ID}, err
	}

	return &ProcessReport{Outcome: OutcomeProcessed, Result: result}, nil
}

// cacheKey fingerprints everything that can influence a pipeline result:
// subject, description, tags, and code. Tags are case-folded and sorted so
// the key matches the keyword union's tag handling regardless of order.
func cacheKey(sub types.Submission) string {
	tags := make([]string, len(sub.Tags))
	for i, tag := range sub.Tags {
		tags[i] = strings.ToLower(strings.TrimSpace(tag))
	}
	sort.Strings(tags)
	text := sub.Subject + "\n" + sub.Description + "\n" + strings.Join(tags, ",")
	return fingerprint.Exact(text, sub.Code)
}

// ProcessPending drains the pending queue while the operational window is
// open, feeding each submission back through the full entry flow.
func (p *Processor) ProcessPending(ctx context.Context) int {
	processed := 0
	for p.gate.Open() {
		item, ok := p.pending.Dequeue()
		if !ok {
			break
		}
		if _, err := p.run(ctx, item.Submission); err != nil {
			p.log.WithFields(logrus.Fields{
				"submission": item.Submission.ID,
				"error":      err,
			}).Warn("queued submission failed during drain")
			continue
		}
		processed++
	}
	return processed
}

// RetryFailed removes the failed item with the given ID and re-submits its
// original payload through the full entry pipeline. There is no resume from
// partial progress.
func (p *Processor) RetryFailed(ctx context.Context, id string) (*ProcessReport, error) {
	item, ok := p.failed.Take(id)
	if !ok {
		return nil, fmt.Errorf("failed item %s not found", id)
	}
	return p.Process(ctx, item.Submission)
}

// ClearFailed empties the failed queue unconditionally
func (p *Processor) ClearFailed() {
	p.failed.Clear()
}

// PendingItems returns a snapshot of the pending queue
func (p *Processor) PendingItems() []queue.PendingItem {
	return p.pending.Items()
}

// FailedItems returns a snapshot of the failed queue
func (p *Processor) FailedItems() []queue.FailedItem {
	return p.failed.Items()
}
