package types

import (
	"fmt"
	"strings"
	"time"
)

// Proposal represents one machine-generated code change for a single file.
// Proposals are immutable once stored except for the DuplicateOf backfill,
// which links a rejected-as-duplicate proposal to the one it matched.
type Proposal struct {
	ID           string    `json:"id"`
	AIType       string    `json:"ai_type"`
	FilePath     string    `json:"file_path"`
	CodeBefore   string    `json:"code_before"`
	CodeAfter    string    `json:"code_after"`
	CodeHash     string    `json:"code_hash"`     // exact content fingerprint
	SemanticHash string    `json:"semantic_hash"` // normalized-structure fingerprint
	DuplicateOf  string    `json:"duplicate_of,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks if the proposal has valid field values
func (p *Proposal) Validate() error {
	if p.AIType == "" {
		return fmt.Errorf("ai_type is required")
	}
	if p.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if p.CodeAfter == "" {
		return fmt.Errorf("code_after is required")
	}
	if p.CodeHash == "" {
		return fmt.Errorf("code_hash is required")
	}
	if p.SemanticHash == "" {
		return fmt.Errorf("semantic_hash is required")
	}
	return nil
}

// ApprovalStatus represents the current state of an approval record
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalCompleted ApprovalStatus = "completed"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalFailed    ApprovalStatus = "failed"
)

// IsValid checks if the approval status value is valid
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalCompleted, ApprovalRejected, ApprovalFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case ApprovalCompleted, ApprovalRejected, ApprovalFailed:
		return true
	}
	return false
}

// ValidTransitions defines the valid state transitions for the approval
// state machine.
//
// State Machine Diagram:
//
//	pending → approved → completed
//	    ↓         ↓
//	rejected    failed
//
// Valid transitions:
//   - pending → approved (human approves, merge+build begins)
//   - pending → rejected (human rejects, request closed best-effort)
//   - approved → completed (merge and build succeeded)
//   - approved → failed (merge or build threw; error recorded)
//
// completed, rejected, and failed are terminal.
func (s ApprovalStatus) ValidTransitions() []ApprovalStatus {
	switch s {
	case ApprovalPending:
		return []ApprovalStatus{ApprovalApproved, ApprovalRejected}
	case ApprovalApproved:
		return []ApprovalStatus{ApprovalCompleted, ApprovalFailed}
	default:
		return []ApprovalStatus{} // Terminal states
	}
}

// CanTransitionTo checks if a transition from this status to the target is valid
func (s ApprovalStatus) CanTransitionTo(target ApprovalStatus) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// ApprovalRecord tracks one proposal's journey from submission through
// merge/build or rejection. Owned exclusively by the approval manager.
type ApprovalRecord struct {
	ID              string         `json:"id"`
	AIType          string         `json:"ai_type"`
	ProposalID      string         `json:"proposal_id"`
	PRURL           string         `json:"pr_url"`
	PRNumber        int            `json:"pr_number"`
	Branch          string         `json:"branch"`
	Updates         string         `json:"updates,omitempty"`
	LearningData    string         `json:"learning_data,omitempty"`
	Status          ApprovalStatus `json:"status"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	FilePath        string         `json:"file_path"`
	IsNewFile       bool           `json:"is_new_file"`
	CommitMessage   string         `json:"commit_message"`
	ApprovedBy      string         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	Comments        string         `json:"comments,omitempty"`
	RejectedBy      string         `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	BuildResult     string         `json:"build_result,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Validate checks if the approval record has valid field values
func (r *ApprovalRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.AIType == "" {
		return fmt.Errorf("ai_type is required")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.Status == ApprovalCompleted && r.ApprovedBy == "" {
		return fmt.Errorf("approved_by is required for completed records")
	}
	if r.Status == ApprovalRejected && r.RejectedBy == "" {
		return fmt.Errorf("rejected_by is required for rejected records")
	}
	return nil
}

// Submission is an enrichment input (a paper-like research submission)
// flowing through the processing pipeline.
type Submission struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Code        string    `json:"code,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate checks if the submission has valid field values
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Subject) > 500 {
		return fmt.Errorf("subject must be 500 characters or less (got %d)", len(s.Subject))
	}
	return nil
}

// ProposalStats provides aggregate proposal metrics grouped by AI type
type ProposalStats struct {
	AIType     string `json:"ai_type"`
	Total      int    `json:"total"`
	Duplicates int    `json:"duplicates"`
	Unique     int    `json:"unique"`
}

// ApprovalStats provides aggregate metrics over approval records
type ApprovalStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}
