package storage

import (
	"context"
	"time"

	"github.com/patchflow/patchflow/internal/storage/sqlite"
	"github.com/patchflow/patchflow/internal/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = sqlite.ErrNotFound

// Storage defines the interface for proposal and approval persistence backends
type Storage interface {
	// Proposals
	CreateProposal(ctx context.Context, p *types.Proposal) error
	GetProposal(ctx context.Context, id string) (*types.Proposal, error)
	GetProposalByCodeHash(ctx context.Context, aiType, filePath, codeHash string) (*types.Proposal, error)
	GetProposalBySemanticHash(ctx context.Context, aiType, filePath, semanticHash string) (*types.Proposal, error)
	GetRecentProposals(ctx context.Context, aiType, filePath string, since time.Time, limit int) ([]*types.Proposal, error)
	MarkDuplicate(ctx context.Context, id, duplicateOf string) error
	GetProposalStats(ctx context.Context) ([]*types.ProposalStats, error)

	// Approvals
	CreateApproval(ctx context.Context, rec *types.ApprovalRecord) error
	GetApproval(ctx context.Context, id string) (*types.ApprovalRecord, error)
	UpdateApproval(ctx context.Context, rec *types.ApprovalRecord) error
	ListApprovalsByStatus(ctx context.Context, status types.ApprovalStatus) ([]*types.ApprovalRecord, error)
	GetApprovalStats(ctx context.Context) (*types.ApprovalStats, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".patchflow/patchflow.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".patchflow/patchflow.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".patchflow/patchflow.db"
	}

	return sqlite.New(cfg.Path)
}
