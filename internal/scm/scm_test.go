package scm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchflow/patchflow/internal/approval"
)

func TestBranchName(t *testing.T) {
	tests := []struct {
		name string
		req  approval.ChangeRequest
		want string
	}{
		{
			name: "proposal id",
			req:  approval.ChangeRequest{AIType: "refactor-bot", ProposalID: "abc-123"},
			want: "patchflow/refactor-bot/abc-123",
		},
		{
			name: "falls back to file path",
			req:  approval.ChangeRequest{AIType: "lint fixer", FilePath: "pkg/a/b.go"},
			want: "patchflow/lint-fixer/pkg-a-b.go",
		},
		{
			name: "unsafe characters replaced",
			req:  approval.ChangeRequest{AIType: "bot:v2", ProposalID: "id with spaces"},
			want: "patchflow/bot-v2/id-with-spaces",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, branchName(tt.req))
		})
	}
}

func TestPRNumber(t *testing.T) {
	n, err := prNumber("https://github.com/acme/repo/pull/417")
	require.NoError(t, err)
	assert.Equal(t, 417, n)

	_, err = prNumber("https://github.com/acme/repo/pull/")
	assert.Error(t, err)

	_, err = prNumber("not a url")
	assert.Error(t, err)
}

func TestCommandBuilder(t *testing.T) {
	b := NewCommandBuilder("echo build ok", t.TempDir())
	output, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "build ok", output)

	failing := NewCommandBuilder("echo boom; exit 3", t.TempDir())
	output, err = failing.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, output, "boom")
	assert.Contains(t, err.Error(), "boom")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 10))
	assert.Equal(t, "cde", tail("abcde", 3))
}
