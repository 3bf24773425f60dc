// Package proposal is the submission front door for machine-generated
// code changes: every incoming change is fingerprinted, checked against
// prior proposals, and recorded with its duplicate linkage.
package proposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/patchflow/patchflow/internal/dedup"
	"github.com/patchflow/patchflow/internal/fingerprint"
	"github.com/patchflow/patchflow/internal/storage"
	"github.com/patchflow/patchflow/internal/types"
)

// SubmitResult is the outcome of recording one proposal
type SubmitResult struct {
	Proposal *types.Proposal `json:"proposal"`
	Decision *dedup.Decision `json:"decision"`
}

// Service records proposals and classifies them against prior work
type Service struct {
	store  storage.Storage
	engine *dedup.Engine
	log    logrus.FieldLogger
}

// NewService creates a proposal service
func NewService(store storage.Storage, engine *dedup.Engine, log logrus.FieldLogger) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if engine == nil {
		return nil, errors.New("dedup engine is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, engine: engine, log: log}, nil
}

// Submit fingerprints and records one incoming change. The proposal is
// stored regardless of the duplicate decision; duplicates are linked to
// the proposal they matched via the DuplicateOf backfill.
func (s *Service) Submit(ctx context.Context, aiType, filePath, codeBefore, codeAfter string) (*SubmitResult, error) {
	decision, err := s.engine.Check(ctx, aiType, filePath, codeBefore, codeAfter)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	p := &types.Proposal{
		AIType:       aiType,
		FilePath:     filePath,
		CodeBefore:   codeBefore,
		CodeAfter:    codeAfter,
		CodeHash:     fingerprint.Exact(codeBefore, codeAfter),
		SemanticHash: fingerprint.Structural(codeBefore + codeAfter),
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid proposal: %w", err)
	}
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to record proposal: %w", err)
	}

	if decision.IsDuplicate {
		if err := s.store.MarkDuplicate(ctx, p.ID, decision.Proposal.ID); err != nil {
			return nil, fmt.Errorf("failed to link duplicate: %w", err)
		}
		p.DuplicateOf = decision.Proposal.ID
		s.log.WithFields(logrus.Fields{
			"proposal":     p.ID,
			"duplicate_of": decision.Proposal.ID,
			"type":         decision.Type,
			"similarity":   decision.Similarity,
		}).Info("duplicate proposal recorded")
	}

	return &SubmitResult{Proposal: p, Decision: decision}, nil
}

// Get returns one proposal by ID
func (s *Service) Get(ctx context.Context, id string) (*types.Proposal, error) {
	return s.store.GetProposal(ctx, id)
}

// Stats returns per-source proposal rollups
func (s *Service) Stats(ctx context.Context) ([]*types.ProposalStats, error) {
	return s.store.GetProposalStats(ctx)
}
