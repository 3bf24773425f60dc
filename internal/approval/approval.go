// Package approval implements the approval workflow for code change
// proposals: submission opens a change request and a pending record, a
// human then approves (merge and build) or rejects it. Records move
// through a strict state machine and every record is guarded by a
// per-record lock so concurrent decisions on the same record serialize.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/patchflow/patchflow/internal/clock"
	"github.com/patchflow/patchflow/internal/notify"
	"github.com/patchflow/patchflow/internal/storage"
	"github.com/patchflow/patchflow/internal/types"
)

// ErrStateConflict is returned when an operation is attempted on a record
// whose current status does not permit it (e.g. approving a rejected record).
var ErrStateConflict = errors.New("approval state conflict")

// ChangeRequest describes one proposed file change to push to the SCM
type ChangeRequest struct {
	AIType        string
	ProposalID    string
	FilePath      string
	Content       string
	IsNewFile     bool
	CommitMessage string
	Updates       string
	LearningData  string
}

// PushResult is what the SCM reports after opening a change request
type PushResult struct {
	URL    string
	Number int
	Branch string
}

// SCM abstracts the source-control host the manager pushes changes to
type SCM interface {
	// PushChange creates a branch and opens a change request for the change
	PushChange(ctx context.Context, req ChangeRequest) (*PushResult, error)
	// MergeRequest merges the change request at the given URL
	MergeRequest(ctx context.Context, url string) error
	// CloseRequest closes the change request without merging
	CloseRequest(ctx context.Context, number int) error
}

// Builder runs the post-merge build and returns its summary output
type Builder interface {
	Build(ctx context.Context) (string, error)
}

// Manager owns the approval lifecycle. All status transitions go through
// it; callers never write approval records directly.
type Manager struct {
	store    storage.Storage
	scm      SCM
	builder  Builder
	notifier *notify.Notifier
	clock    clock.Clock
	log      logrus.FieldLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ManagerConfig holds manager construction parameters
type ManagerConfig struct {
	Store    storage.Storage
	SCM      SCM
	Builder  Builder
	Notifier *notify.Notifier   // optional
	Logger   logrus.FieldLogger // optional
}

// NewManager creates an approval manager
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("storage is required")
	}
	if cfg.SCM == nil {
		return nil, errors.New("scm client is required")
	}
	if cfg.Builder == nil {
		return nil, errors.New("builder is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		store:    cfg.Store,
		scm:      cfg.SCM,
		builder:  cfg.Builder,
		notifier: cfg.Notifier,
		clock:    clock.Real{},
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// announce sends one notification when a notifier is configured
func (m *Manager) announce(n notify.Notification) {
	if m.notifier != nil {
		m.notifier.Send(n)
	}
}

// WithClock overrides the manager's clock (used in tests)
func (m *Manager) WithClock(c clock.Clock) *Manager {
	m.clock = c
	return m
}

// lockFor returns the mutex guarding one record's transitions. Locks are
// per record ID, so decisions on distinct records never contend.
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Submit pushes the change to the SCM and, only if the push succeeds,
// creates a pending approval record. A failed push leaves no record behind.
func (m *Manager) Submit(ctx context.Context, req ChangeRequest) (*types.ApprovalRecord, error) {
	if req.AIType == "" {
		return nil, fmt.Errorf("ai_type is required")
	}
	if req.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}

	push, err := m.scm.PushChange(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to push change: %w", err)
	}

	rec := &types.ApprovalRecord{
		ID:            uuid.New().String(),
		AIType:        req.AIType,
		ProposalID:    req.ProposalID,
		PRURL:         push.URL,
		PRNumber:      push.Number,
		Branch:        push.Branch,
		Updates:       req.Updates,
		LearningData:  req.LearningData,
		Status:        types.ApprovalPending,
		SubmittedAt:   m.clock.Now(),
		FilePath:      req.FilePath,
		IsNewFile:     req.IsNewFile,
		CommitMessage: req.CommitMessage,
	}
	if err := m.store.CreateApproval(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create approval record: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"approval": rec.ID,
		"ai_type":  rec.AIType,
		"pr_url":   rec.PRURL,
	}).Info("change submitted for approval")
	m.announce(notify.Notification{
		Title:    "change awaiting approval",
		Body:     fmt.Sprintf("%s proposed a change to %s (%s)", rec.AIType, rec.FilePath, rec.PRURL),
		Category: notify.CategoryApproval,
	})
	return rec, nil
}

// Approve transitions a pending record to approved, then merges the change
// request and runs the build. On success the record completes with the
// build output captured; if the merge or build fails the record lands in
// failed with the error recorded, and the error also propagates to the
// caller.
func (m *Manager) Approve(ctx context.Context, id, approver, comments string) (*types.ApprovalRecord, error) {
	if approver == "" {
		return nil, fmt.Errorf("approver is required")
	}

	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	rec, err := m.store.GetApproval(ctx, id)
	if err != nil {
		m.dropLock(id)
		return nil, fmt.Errorf("failed to load approval %s: %w", id, err)
	}
	if !rec.Status.CanTransitionTo(types.ApprovalApproved) {
		if rec.Status.IsTerminal() {
			m.dropLock(id)
		}
		return nil, fmt.Errorf("%w: cannot approve record in status %s", ErrStateConflict, rec.Status)
	}

	now := m.clock.Now()
	rec.Status = types.ApprovalApproved
	rec.ApprovedBy = approver
	rec.ApprovedAt = &now
	rec.Comments = comments
	if err := m.store.UpdateApproval(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update approval %s: %w", id, err)
	}

	err = m.finalize(ctx, rec)
	if rec.Status.IsTerminal() {
		m.dropLock(id)
	}
	if err != nil {
		return rec, err
	}
	return rec, nil
}

// dropLock discards a terminal record's lock entry. Terminal records admit
// no further transitions, so any later caller racing on a fresh mutex still
// fails the status check.
func (m *Manager) dropLock(id string) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}

// finalize merges and builds an approved record, moving it to completed
// or failed.
func (m *Manager) finalize(ctx context.Context, rec *types.ApprovalRecord) error {
	if err := m.scm.MergeRequest(ctx, rec.PRURL); err != nil {
		return m.fail(ctx, rec, fmt.Errorf("merge failed: %w", err))
	}

	output, err := m.builder.Build(ctx)
	if err != nil {
		return m.fail(ctx, rec, fmt.Errorf("build failed: %w", err))
	}

	rec.Status = types.ApprovalCompleted
	rec.BuildResult = output
	if err := m.store.UpdateApproval(ctx, rec); err != nil {
		return fmt.Errorf("failed to complete approval %s: %w", rec.ID, err)
	}
	m.log.WithFields(logrus.Fields{
		"approval": rec.ID,
		"pr_url":   rec.PRURL,
	}).Info("approval completed")
	m.announce(notify.Notification{
		Title:    "change merged and built",
		Body:     fmt.Sprintf("%s merged into %s", rec.PRURL, rec.FilePath),
		Category: notify.CategoryBuild,
	})
	return nil
}

// fail records a terminal failure on the record and propagates the cause
func (m *Manager) fail(ctx context.Context, rec *types.ApprovalRecord, cause error) error {
	rec.Status = types.ApprovalFailed
	rec.Error = cause.Error()
	if err := m.store.UpdateApproval(ctx, rec); err != nil {
		m.log.WithFields(logrus.Fields{
			"approval": rec.ID,
			"error":    err,
		}).Error("failed to persist failed status")
	}
	m.log.WithFields(logrus.Fields{
		"approval": rec.ID,
		"error":    cause,
	}).Warn("approval failed")
	m.announce(notify.Notification{
		Title:    "approval failed",
		Body:     fmt.Sprintf("%s: %s", rec.PRURL, cause.Error()),
		Category: notify.CategoryError,
	})
	return cause
}

// Reject transitions a pending record to rejected and closes the change
// request. Closing is best effort: a close failure is logged but does not
// fail the rejection, which is already durable.
func (m *Manager) Reject(ctx context.Context, id, rejecter, reason string) (*types.ApprovalRecord, error) {
	if rejecter == "" {
		return nil, fmt.Errorf("rejecter is required")
	}

	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	rec, err := m.store.GetApproval(ctx, id)
	if err != nil {
		m.dropLock(id)
		return nil, fmt.Errorf("failed to load approval %s: %w", id, err)
	}
	if !rec.Status.CanTransitionTo(types.ApprovalRejected) {
		if rec.Status.IsTerminal() {
			m.dropLock(id)
		}
		return nil, fmt.Errorf("%w: cannot reject record in status %s", ErrStateConflict, rec.Status)
	}

	now := m.clock.Now()
	rec.Status = types.ApprovalRejected
	rec.RejectedBy = rejecter
	rec.RejectedAt = &now
	rec.RejectionReason = reason
	if err := m.store.UpdateApproval(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update approval %s: %w", id, err)
	}

	m.dropLock(id)

	if err := m.scm.CloseRequest(ctx, rec.PRNumber); err != nil {
		m.log.WithFields(logrus.Fields{
			"approval":  rec.ID,
			"pr_number": rec.PRNumber,
			"error":     err,
		}).Warn("failed to close change request after rejection")
	}

	m.log.WithFields(logrus.Fields{
		"approval": rec.ID,
		"by":       rejecter,
	}).Info("change rejected")
	return rec, nil
}

// Get returns one approval record by ID
func (m *Manager) Get(ctx context.Context, id string) (*types.ApprovalRecord, error) {
	return m.store.GetApproval(ctx, id)
}

// ListByStatus returns all records currently in the given status
func (m *Manager) ListByStatus(ctx context.Context, status types.ApprovalStatus) ([]*types.ApprovalRecord, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	return m.store.ListApprovalsByStatus(ctx, status)
}

// Stats returns aggregate counts across all approval records
func (m *Manager) Stats(ctx context.Context) (*types.ApprovalStats, error) {
	return m.store.GetApprovalStats(ctx)
}
