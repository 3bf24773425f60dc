// Package enrich runs the asynchronous enrichment pipeline for incoming
// submissions: keyword extraction, code analysis, external search, and
// learning/capability store updates, with failure isolation per step.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patchflow/patchflow/internal/clock"
	"github.com/patchflow/patchflow/internal/types"
)

// Step names, in execution order
const (
	StepKeywords     = "keywords"
	StepCodeAnalysis = "code_analysis"
	StepSearch       = "search"
	StepLearning     = "learning"
	StepCapabilities = "capabilities"
)

// stepOrder is the fixed execution order. StepKeywords is the critical
// step: every later step depends on the extracted terms, so its failure
// aborts the whole pipeline.
var stepOrder = []string{
	StepKeywords,
	StepCodeAnalysis,
	StepSearch,
	StepLearning,
	StepCapabilities,
}

// StepResult records the outcome of one pipeline step
type StepResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of one pipeline run
type Result struct {
	SubmissionID string                `json:"submission_id"`
	Keywords     *KeywordResult        `json:"keywords,omitempty"`
	CodeAnalysis string                `json:"code_analysis,omitempty"`
	SearchHits   []string              `json:"search_hits,omitempty"`
	Steps        map[string]StepResult `json:"steps"`
	CompletedAt  time.Time             `json:"completed_at"`
}

// Succeeded reports whether every executed step succeeded
func (r *Result) Succeeded() bool {
	for _, step := range r.Steps {
		if !step.Success {
			return false
		}
	}
	return true
}

// Pipeline executes the fixed ordered enrichment steps for one submission.
// Steps run strictly sequentially: later steps assume earlier derived data.
type Pipeline struct {
	analysis     AnalysisClient
	search       Searcher
	learning     LearningStore
	capabilities CapabilityStore
	clock        clock.Clock
}

// PipelineConfig holds the pipeline's collaborators
type PipelineConfig struct {
	Analysis     AnalysisClient
	Search       Searcher
	Learning     LearningStore
	Capabilities CapabilityStore
}

// NewPipeline creates an enrichment pipeline
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg.Analysis == nil {
		return nil, errors.New("analysis client is required")
	}
	if cfg.Search == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Learning == nil {
		return nil, errors.New("learning store is required")
	}
	if cfg.Capabilities == nil {
		return nil, errors.New("capability store is required")
	}
	return &Pipeline{
		analysis:     cfg.Analysis,
		search:       cfg.Search,
		learning:     cfg.Learning,
		capabilities: cfg.Capabilities,
		clock:        clock.Real{},
	}, nil
}

// WithClock overrides the pipeline's clock (used in tests)
func (p *Pipeline) WithClock(c clock.Clock) *Pipeline {
	p.clock = c
	return p
}

// Run executes all steps in order. A non-critical step's failure is
// recorded in the result map and execution continues; failure of the
// keyword step aborts the pipeline and propagates.
func (p *Pipeline) Run(ctx context.Context, sub types.Submission) (*Result, error) {
	result := &Result{
		SubmissionID: sub.ID,
		Steps:        make(map[string]StepResult, len(stepOrder)),
	}

	for _, step := range stepOrder {
		err := p.runStep(ctx, step, sub, result)
		if err != nil && step == StepKeywords {
			result.Steps[step] = StepResult{Success: false, Error: err.Error()}
			return nil, fmt.Errorf("critical step %s failed: %w", step, err)
		}
		if err != nil {
			result.Steps[step] = StepResult{Success: false, Error: err.Error()}
			continue
		}
		result.Steps[step] = StepResult{Success: true}
	}

	result.CompletedAt = p.clock.Now()
	return result, nil
}

func (p *Pipeline) runStep(ctx context.Context, step string, sub types.Submission, result *Result) error {
	switch step {
	case StepKeywords:
		kw, err := extractKeywords(ctx, p.analysis, sub)
		if err != nil {
			return err
		}
		result.Keywords = kw
		return nil

	case StepCodeAnalysis:
		if sub.Code == "" {
			return nil
		}
		analysis, err := p.analysis.AnalyzeCode(ctx, sub.Code)
		if err != nil {
			return fmt.Errorf("code analysis failed: %w", err)
		}
		result.CodeAnalysis = analysis
		return nil

	case StepSearch:
		hits, err := p.search.Search(ctx, result.Keywords.Terms)
		if err != nil {
			return fmt.Errorf("external search failed: %w", err)
		}
		result.SearchHits = hits
		return nil

	case StepLearning:
		entry := LearningEntry{
			SubmissionID: sub.ID,
			Subject:      sub.Subject,
			Keywords:     result.Keywords.Terms,
			Analysis:     result.CodeAnalysis,
			CreatedAt:    p.clock.Now(),
		}
		if err := p.learning.Append(ctx, entry); err != nil {
			return fmt.Errorf("learning store append failed: %w", err)
		}
		return nil

	case StepCapabilities:
		if err := updateCapabilities(ctx, p.capabilities, sub, result.Keywords.Terms, p.clock.Now()); err != nil {
			return fmt.Errorf("capability update failed: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown step: %s", step)
	}
}
