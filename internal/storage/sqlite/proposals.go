package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patchflow/patchflow/internal/types"
)

// CreateProposal stores a new proposal. An ID is assigned when empty.
func (s *SQLiteStorage) CreateProposal(ctx context.Context, p *types.Proposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid proposal: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (id, ai_type, file_path, code_before, code_after,
			code_hash, semantic_hash, duplicate_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AIType, p.FilePath, p.CodeBefore, p.CodeAfter,
		p.CodeHash, p.SemanticHash, p.DuplicateOf, p.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by ID
func (s *SQLiteStorage) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	row := s.db.QueryRowContext(ctx, proposalSelect+` WHERE id = ?`, id)
	return scanProposal(row)
}

// GetProposalByCodeHash returns the most recent proposal matching the exact
// content fingerprint for the given (aiType, filePath), or ErrNotFound.
func (s *SQLiteStorage) GetProposalByCodeHash(ctx context.Context, aiType, filePath, codeHash string) (*types.Proposal, error) {
	row := s.db.QueryRowContext(ctx, proposalSelect+`
		WHERE ai_type = ? AND file_path = ? AND code_hash = ?
		ORDER BY created_at DESC LIMIT 1`,
		aiType, filePath, codeHash)
	return scanProposal(row)
}

// GetProposalBySemanticHash returns the most recent proposal matching the
// normalized-structure fingerprint, or ErrNotFound.
func (s *SQLiteStorage) GetProposalBySemanticHash(ctx context.Context, aiType, filePath, semanticHash string) (*types.Proposal, error) {
	row := s.db.QueryRowContext(ctx, proposalSelect+`
		WHERE ai_type = ? AND file_path = ? AND semantic_hash = ?
		ORDER BY created_at DESC LIMIT 1`,
		aiType, filePath, semanticHash)
	return scanProposal(row)
}

// GetRecentProposals returns up to limit proposals for (aiType, filePath)
// created at or after since, ordered newest-first.
func (s *SQLiteStorage) GetRecentProposals(ctx context.Context, aiType, filePath string, since time.Time, limit int) ([]*types.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, proposalSelect+`
		WHERE ai_type = ? AND file_path = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT ?`,
		aiType, filePath, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*types.Proposal
	for rows.Next() {
		p, err := scanProposalRow(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// MarkDuplicate backfills the duplicate_of reference on an existing proposal
func (s *SQLiteStorage) MarkDuplicate(ctx context.Context, id, duplicateOf string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET duplicate_of = ? WHERE id = ?`, duplicateOf, id)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetProposalStats returns per-aiType totals with duplicate/unique counts
func (s *SQLiteStorage) GetProposalStats(ctx context.Context) ([]*types.ProposalStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ai_type,
			COUNT(*) AS total,
			SUM(CASE WHEN duplicate_of != '' THEN 1 ELSE 0 END) AS duplicates
		FROM proposals
		GROUP BY ai_type
		ORDER BY ai_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal stats: %w", err)
	}
	defer rows.Close()

	var stats []*types.ProposalStats
	for rows.Next() {
		st := &types.ProposalStats{}
		if err := rows.Scan(&st.AIType, &st.Total, &st.Duplicates); err != nil {
			return nil, fmt.Errorf("failed to scan proposal stats: %w", err)
		}
		st.Unique = st.Total - st.Duplicates
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

const proposalSelect = `
	SELECT id, ai_type, file_path, code_before, code_after,
		code_hash, semantic_hash, duplicate_of, created_at
	FROM proposals`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProposal(row *sql.Row) (*types.Proposal, error) {
	p, err := scanProposalRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

func scanProposalRow(row rowScanner) (*types.Proposal, error) {
	p := &types.Proposal{}
	var createdAt int64
	err := row.Scan(&p.ID, &p.AIType, &p.FilePath, &p.CodeBefore, &p.CodeAfter,
		&p.CodeHash, &p.SemanticHash, &p.DuplicateOf, &createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return p, nil
}
