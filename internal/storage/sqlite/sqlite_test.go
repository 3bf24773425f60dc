package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchflow/patchflow/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testProposal(aiType, filePath, codeHash, semanticHash string) *types.Proposal {
	return &types.Proposal{
		AIType:       aiType,
		FilePath:     filePath,
		CodeBefore:   "before",
		CodeAfter:    "after",
		CodeHash:     codeHash,
		SemanticHash: semanticHash,
	}
}

func TestCreateAndGetProposal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProposal("refactoring", "a/b.go", "hash1", "sem1")
	require.NoError(t, store.CreateProposal(ctx, p))
	require.NotEmpty(t, p.ID, "ID should be assigned")
	require.False(t, p.CreatedAt.IsZero(), "CreatedAt should be assigned")

	got, err := store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.AIType, got.AIType)
	assert.Equal(t, p.CodeHash, got.CodeHash)
	assert.Equal(t, p.SemanticHash, got.SemanticHash)

	_, err = store.GetProposal(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProposalByCodeHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProposal("refactoring", "a/b.go", "hash1", "sem1")
	require.NoError(t, store.CreateProposal(ctx, p))

	got, err := store.GetProposalByCodeHash(ctx, "refactoring", "a/b.go", "hash1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// Same hash, different file: no match
	_, err = store.GetProposalByCodeHash(ctx, "refactoring", "other.go", "hash1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Same hash, different aiType: no match
	_, err = store.GetProposalByCodeHash(ctx, "testing", "a/b.go", "hash1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProposalBySemanticHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := testProposal("refactoring", "a/b.go", "hash1", "sem1")
	require.NoError(t, store.CreateProposal(ctx, p))

	got, err := store.GetProposalBySemanticHash(ctx, "refactoring", "a/b.go", "sem1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = store.GetProposalBySemanticHash(ctx, "refactoring", "a/b.go", "sem2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecentProposalsOrderAndWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := testProposal("refactoring", "a/b.go", "h-old", "s-old")
	old.CreatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.CreateProposal(ctx, old))

	mid := testProposal("refactoring", "a/b.go", "h-mid", "s-mid")
	mid.CreatedAt = now.Add(-2 * time.Hour)
	require.NoError(t, store.CreateProposal(ctx, mid))

	newest := testProposal("refactoring", "a/b.go", "h-new", "s-new")
	newest.CreatedAt = now.Add(-1 * time.Hour)
	require.NoError(t, store.CreateProposal(ctx, newest))

	got, err := store.GetRecentProposals(ctx, "refactoring", "a/b.go", now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "48h-old proposal is outside the window")
	assert.Equal(t, "h-new", got[0].CodeHash, "newest first")
	assert.Equal(t, "h-mid", got[1].CodeHash)

	limited, err := store.GetRecentProposals(ctx, "refactoring", "a/b.go", now.Add(-24*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "h-new", limited[0].CodeHash)
}

func TestMarkDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := testProposal("refactoring", "a/b.go", "h1", "s1")
	require.NoError(t, store.CreateProposal(ctx, original))
	dup := testProposal("refactoring", "a/b.go", "h2", "s2")
	require.NoError(t, store.CreateProposal(ctx, dup))

	require.NoError(t, store.MarkDuplicate(ctx, dup.ID, original.ID))

	got, err := store.GetProposal(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, got.DuplicateOf)

	assert.ErrorIs(t, store.MarkDuplicate(ctx, "missing", original.ID), ErrNotFound)
}

func TestGetProposalStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testProposal("refactoring", "a.go", "h1", "s1")
	require.NoError(t, store.CreateProposal(ctx, a))
	b := testProposal("refactoring", "a.go", "h2", "s2")
	require.NoError(t, store.CreateProposal(ctx, b))
	require.NoError(t, store.MarkDuplicate(ctx, b.ID, a.ID))
	c := testProposal("testing", "b.go", "h3", "s3")
	require.NoError(t, store.CreateProposal(ctx, c))

	stats, err := store.GetProposalStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "refactoring", stats[0].AIType)
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, 1, stats[0].Duplicates)
	assert.Equal(t, 1, stats[0].Unique)

	assert.Equal(t, "testing", stats[1].AIType)
	assert.Equal(t, 1, stats[1].Total)
	assert.Equal(t, 0, stats[1].Duplicates)
}

func testApproval(id string) *types.ApprovalRecord {
	return &types.ApprovalRecord{
		ID:            id,
		AIType:        "refactoring",
		ProposalID:    "prop-1",
		PRURL:         "https://example.com/pr/7",
		PRNumber:      7,
		Branch:        "patchflow/refactoring-7",
		Status:        types.ApprovalPending,
		SubmittedAt:   time.Now().UTC(),
		FilePath:      "a/b.go",
		CommitMessage: "Refactor b.go",
	}
}

func TestCreateAndGetApproval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testApproval("appr-1")
	require.NoError(t, store.CreateApproval(ctx, rec))

	got, err := store.GetApproval(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalPending, got.Status)
	assert.Equal(t, 7, got.PRNumber)
	assert.Nil(t, got.ApprovedAt)

	_, err = store.GetApproval(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateApproval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testApproval("appr-1")
	require.NoError(t, store.CreateApproval(ctx, rec))

	now := time.Now().UTC()
	rec.Status = types.ApprovalCompleted
	rec.ApprovedBy = "alice"
	rec.ApprovedAt = &now
	rec.Comments = "looks good"
	rec.BuildResult = "build #42 passed"
	require.NoError(t, store.UpdateApproval(ctx, rec))

	got, err := store.GetApproval(ctx, "appr-1")
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalCompleted, got.Status)
	assert.Equal(t, "alice", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, now.UnixNano(), got.ApprovedAt.UnixNano())
	assert.Equal(t, "build #42 passed", got.BuildResult)

	missing := testApproval("missing")
	assert.ErrorIs(t, store.UpdateApproval(ctx, missing), ErrNotFound)
}

func TestListApprovalsByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testApproval("appr-1")
	a.SubmittedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.CreateApproval(ctx, a))

	b := testApproval("appr-2")
	b.SubmittedAt = time.Now().UTC()
	require.NoError(t, store.CreateApproval(ctx, b))

	c := testApproval("appr-3")
	c.Status = types.ApprovalRejected
	c.RejectedBy = "bob"
	require.NoError(t, store.CreateApproval(ctx, c))

	pending, err := store.ListApprovalsByStatus(ctx, types.ApprovalPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "appr-2", pending[0].ID, "newest submission first")

	rejected, err := store.ListApprovalsByStatus(ctx, types.ApprovalRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
}

func TestGetApprovalStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testApproval("appr-1")
	require.NoError(t, store.CreateApproval(ctx, a))

	b := testApproval("appr-2")
	b.Status = types.ApprovalRejected
	b.RejectedBy = "bob"
	require.NoError(t, store.CreateApproval(ctx, b))

	stats, err := store.GetApprovalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 0, stats.Completed)
}
