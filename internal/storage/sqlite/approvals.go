package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/patchflow/patchflow/internal/types"
)

// CreateApproval stores a new approval record
func (s *SQLiteStorage) CreateApproval(ctx context.Context, rec *types.ApprovalRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid approval record: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (id, ai_type, proposal_id, pr_url, pr_number, branch,
			updates, learning_data, status, submitted_at, file_path, is_new_file,
			commit_message, approved_by, approved_at, comments, rejected_by,
			rejected_at, rejection_reason, build_result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AIType, rec.ProposalID, rec.PRURL, rec.PRNumber, rec.Branch,
		rec.Updates, rec.LearningData, string(rec.Status), rec.SubmittedAt.UnixNano(),
		rec.FilePath, boolToInt(rec.IsNewFile), rec.CommitMessage,
		rec.ApprovedBy, timePtrToNano(rec.ApprovedAt), rec.Comments,
		rec.RejectedBy, timePtrToNano(rec.RejectedAt), rec.RejectionReason,
		rec.BuildResult, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to create approval record: %w", err)
	}
	return nil
}

// GetApproval retrieves an approval record by ID
func (s *SQLiteStorage) GetApproval(ctx context.Context, id string) (*types.ApprovalRecord, error) {
	row := s.db.QueryRowContext(ctx, approvalSelect+` WHERE id = ?`, id)
	rec, err := scanApprovalRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// UpdateApproval replaces the mutable fields of an existing approval record
func (s *SQLiteStorage) UpdateApproval(ctx context.Context, rec *types.ApprovalRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid approval record: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET
			status = ?, approved_by = ?, approved_at = ?, comments = ?,
			rejected_by = ?, rejected_at = ?, rejection_reason = ?,
			build_result = ?, error = ?
		WHERE id = ?`,
		string(rec.Status), rec.ApprovedBy, timePtrToNano(rec.ApprovedAt), rec.Comments,
		rec.RejectedBy, timePtrToNano(rec.RejectedAt), rec.RejectionReason,
		rec.BuildResult, rec.Error, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update approval record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("approval %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// ListApprovalsByStatus returns approval records in the given status,
// newest submission first.
func (s *SQLiteStorage) ListApprovalsByStatus(ctx context.Context, status types.ApprovalStatus) ([]*types.ApprovalRecord, error) {
	rows, err := s.db.QueryContext(ctx, approvalSelect+`
		WHERE status = ? ORDER BY submitted_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var records []*types.ApprovalRecord
	for rows.Next() {
		rec, err := scanApprovalRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetApprovalStats returns counts of approval records per status
func (s *SQLiteStorage) GetApprovalStats(ctx context.Context) (*types.ApprovalStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM approvals GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval stats: %w", err)
	}
	defer rows.Close()

	stats := &types.ApprovalStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan approval stats: %w", err)
		}
		stats.Total += count
		switch types.ApprovalStatus(status) {
		case types.ApprovalPending:
			stats.Pending = count
		case types.ApprovalApproved:
			stats.Approved = count
		case types.ApprovalCompleted:
			stats.Completed = count
		case types.ApprovalRejected:
			stats.Rejected = count
		case types.ApprovalFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

const approvalSelect = `
	SELECT id, ai_type, proposal_id, pr_url, pr_number, branch, updates,
		learning_data, status, submitted_at, file_path, is_new_file,
		commit_message, approved_by, approved_at, comments, rejected_by,
		rejected_at, rejection_reason, build_result, error
	FROM approvals`

func scanApprovalRow(row rowScanner) (*types.ApprovalRecord, error) {
	rec := &types.ApprovalRecord{}
	var status string
	var submittedAt int64
	var isNewFile int
	var approvedAt, rejectedAt sql.NullInt64

	err := row.Scan(&rec.ID, &rec.AIType, &rec.ProposalID, &rec.PRURL, &rec.PRNumber,
		&rec.Branch, &rec.Updates, &rec.LearningData, &status, &submittedAt,
		&rec.FilePath, &isNewFile, &rec.CommitMessage, &rec.ApprovedBy, &approvedAt,
		&rec.Comments, &rec.RejectedBy, &rejectedAt, &rec.RejectionReason,
		&rec.BuildResult, &rec.Error)
	if err != nil {
		return nil, err
	}

	rec.Status = types.ApprovalStatus(status)
	rec.SubmittedAt = time.Unix(0, submittedAt).UTC()
	rec.IsNewFile = isNewFile != 0
	rec.ApprovedAt = nanoToTimePtr(approvedAt)
	rec.RejectedAt = nanoToTimePtr(rejectedAt)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToNano(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nanoToTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
