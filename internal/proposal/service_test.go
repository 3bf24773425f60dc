package proposal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchflow/patchflow/internal/dedup"
	"github.com/patchflow/patchflow/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := dedup.NewEngine(store, dedup.DefaultConfig())
	require.NoError(t, err)

	svc, err := NewService(store, engine, nil)
	require.NoError(t, err)
	return svc
}

const sampleCode = `func Sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}`

func TestSubmitIdenticalCodeTwiceIsExactDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "refactor-bot", "pkg/sum.go", "", sampleCode)
	require.NoError(t, err)
	assert.False(t, first.Decision.IsDuplicate)
	assert.NotEmpty(t, first.Proposal.ID)

	second, err := svc.Submit(ctx, "refactor-bot", "pkg/sum.go", "", sampleCode)
	require.NoError(t, err)
	assert.True(t, second.Decision.IsDuplicate)
	assert.Equal(t, dedup.DuplicateExact, second.Decision.Type)
	assert.Equal(t, 1.0, second.Decision.Similarity)
	assert.Equal(t, first.Proposal.ID, second.Proposal.DuplicateOf)

	stored, err := svc.Get(ctx, second.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Proposal.ID, stored.DuplicateOf, "duplicate linkage persisted")
}

func TestSubmitDifferentFilesAreIndependent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "refactor-bot", "pkg/a.go", "", sampleCode)
	require.NoError(t, err)

	other, err := svc.Submit(ctx, "refactor-bot", "pkg/b.go", "", sampleCode)
	require.NoError(t, err)
	assert.False(t, other.Decision.IsDuplicate, "same code in another file is not a duplicate")
}

func TestSubmitInvalidProposalRejected(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Submit(context.Background(), "refactor-bot", "pkg/a.go", "", "")
	assert.Error(t, err)
}

func TestStatsCountDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "refactor-bot", "pkg/a.go", "", sampleCode)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "refactor-bot", "pkg/a.go", "", sampleCode)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, 1, stats[0].Duplicates)
	assert.Equal(t, 1, stats[0].Unique)
}
