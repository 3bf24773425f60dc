package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/patchflow/patchflow/internal/clock"
	"github.com/patchflow/patchflow/internal/fingerprint"
	"github.com/patchflow/patchflow/internal/storage"
	"github.com/patchflow/patchflow/internal/types"
)

// DuplicateType classifies how a proposal matched prior work
type DuplicateType string

const (
	// DuplicateExact means the literal before/after content already exists
	DuplicateExact DuplicateType = "exact"
	// DuplicateSemantic means only comments/formatting/punctuation differ
	DuplicateSemantic DuplicateType = "semantic"
	// DuplicateSimilar means a recent proposal crossed the similarity threshold
	DuplicateSimilar DuplicateType = "similar"
)

// Decision represents the result of checking a proposal for duplicates
type Decision struct {
	// IsDuplicate is true if any check matched
	IsDuplicate bool `json:"is_duplicate"`

	// Type records which check matched; empty when not a duplicate
	Type DuplicateType `json:"type,omitempty"`

	// Proposal is the prior proposal this one duplicates
	Proposal *types.Proposal `json:"proposal,omitempty"`

	// Similarity is the line similarity against the matched proposal.
	// Always 1.0 for exact matches.
	Similarity float64 `json:"similarity,omitempty"`
}

// Validate checks if the decision has consistent values
func (d *Decision) Validate() error {
	if d.Similarity < 0.0 || d.Similarity > 1.0 {
		return fmt.Errorf("similarity must be between 0.0 and 1.0 (got %.2f)", d.Similarity)
	}
	if d.IsDuplicate && d.Proposal == nil {
		return fmt.Errorf("proposal must be set when is_duplicate is true")
	}
	if d.IsDuplicate && d.Type == "" {
		return fmt.Errorf("type must be set when is_duplicate is true")
	}
	if !d.IsDuplicate && d.Type != "" {
		return fmt.Errorf("type should not be set when is_duplicate is false")
	}
	return nil
}

// Engine classifies incoming proposals against the proposal store
type Engine struct {
	store storage.Storage
	cfg   Config
	clock clock.Clock
}

// NewEngine creates a deduplication engine over the given store
func NewEngine(store storage.Storage, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup config: %w", err)
	}
	return &Engine{store: store, cfg: cfg, clock: clock.Real{}}, nil
}

// WithClock overrides the engine's clock (used in tests)
func (e *Engine) WithClock(c clock.Clock) *Engine {
	e.clock = c
	return e
}

// Check classifies an incoming (aiType, filePath, codeBefore, codeAfter)
// tuple as exact-duplicate, semantic-duplicate, similar, or novel.
//
// The checks run in strict order and short-circuit: the exact check always
// wins over semantic/similar when both would match.
func (e *Engine) Check(ctx context.Context, aiType, filePath, codeBefore, codeAfter string) (*Decision, error) {
	// 1. Exact: identical content fingerprint
	codeHash := fingerprint.Exact(codeBefore, codeAfter)
	match, err := e.store.GetProposalByCodeHash(ctx, aiType, filePath, codeHash)
	if err == nil {
		return &Decision{
			IsDuplicate: true,
			Type:        DuplicateExact,
			Proposal:    match,
			Similarity:  1.0,
		}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("exact duplicate check failed: %w", err)
	}

	// 2. Semantic: structural fingerprint match confirmed by line similarity
	semanticHash := fingerprint.Structural(codeBefore + codeAfter)
	match, err = e.store.GetProposalBySemanticHash(ctx, aiType, filePath, semanticHash)
	if err == nil {
		similarity := fingerprint.LineSimilarity(
			codeBefore+"\n"+codeAfter,
			match.CodeBefore+"\n"+match.CodeAfter,
		)
		if similarity >= e.cfg.SemanticThreshold {
			return &Decision{
				IsDuplicate: true,
				Type:        DuplicateSemantic,
				Proposal:    match,
				Similarity:  similarity,
			}, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("semantic duplicate check failed: %w", err)
	}

	// 3. Similar: first recent proposal above the threshold, newest first
	since := e.clock.Now().Add(-e.cfg.LookbackWindow)
	recent, err := e.store.GetRecentProposals(ctx, aiType, filePath, since, e.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("similar duplicate check failed: %w", err)
	}
	for _, candidate := range recent {
		similarity := fingerprint.LineSimilarity(
			codeBefore+"\n"+codeAfter,
			candidate.CodeBefore+"\n"+candidate.CodeAfter,
		)
		if similarity >= e.cfg.SimilarThreshold {
			return &Decision{
				IsDuplicate: true,
				Type:        DuplicateSimilar,
				Proposal:    candidate,
				Similarity:  similarity,
			}, nil
		}
	}

	return &Decision{IsDuplicate: false}, nil
}
