// Package scm implements the approval manager's source-control and build
// collaborators on top of the git and gh command-line tools.
package scm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/patchflow/patchflow/internal/approval"
)

// Git pushes proposed changes as branches and pull requests using the
// git and gh CLIs.
type Git struct {
	gitPath  string
	ghPath   string
	repoPath string
	log      logrus.FieldLogger
}

// NewGit creates a Git SCM client rooted at repoPath.
// It verifies that both git and gh are available on the system.
func NewGit(ctx context.Context, repoPath string, log logrus.FieldLogger) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	ghPath, err := exec.LookPath("gh")
	if err != nil {
		return nil, fmt.Errorf("gh not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, gitPath, "-C", repoPath, "rev-parse", "--git-dir")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s is not a git repository: %w", repoPath, err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Git{gitPath: gitPath, ghPath: ghPath, repoPath: repoPath, log: log}, nil
}

// PushChange writes the proposed content onto a fresh branch, commits,
// pushes, and opens a pull request for it.
func (g *Git) PushChange(ctx context.Context, req approval.ChangeRequest) (*approval.PushResult, error) {
	branch := branchName(req)

	if err := g.run(ctx, "checkout", "-b", branch); err != nil {
		return nil, fmt.Errorf("failed to create branch %s: %w", branch, err)
	}

	target := filepath.Join(g.repoPath, req.FilePath)
	if req.IsNewFile {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", req.FilePath, err)
		}
	}
	if err := os.WriteFile(target, []byte(req.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", req.FilePath, err)
	}

	if err := g.run(ctx, "add", req.FilePath); err != nil {
		return nil, fmt.Errorf("git add failed: %w", err)
	}
	message := req.CommitMessage
	if message == "" {
		message = fmt.Sprintf("Apply proposed change to %s", req.FilePath)
	}
	if err := g.run(ctx, "commit", "-m", message); err != nil {
		return nil, fmt.Errorf("git commit failed: %w", err)
	}
	if err := g.run(ctx, "push", "-u", "origin", branch); err != nil {
		return nil, fmt.Errorf("git push failed: %w", err)
	}

	url, err := g.createPR(ctx, branch, message, req)
	if err != nil {
		return nil, err
	}
	number, err := prNumber(url)
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"branch": branch,
		"pr_url": url,
	}).Info("change pushed for review")
	return &approval.PushResult{URL: url, Number: number, Branch: branch}, nil
}

// MergeRequest merges the pull request at the given URL
func (g *Git) MergeRequest(ctx context.Context, url string) error {
	cmd := exec.CommandContext(ctx, g.ghPath, "pr", "merge", url, "--squash", "--delete-branch")
	cmd.Dir = g.repoPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gh pr merge failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// CloseRequest closes the pull request without merging
func (g *Git) CloseRequest(ctx context.Context, number int) error {
	cmd := exec.CommandContext(ctx, g.ghPath, "pr", "close", strconv.Itoa(number))
	cmd.Dir = g.repoPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gh pr close failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// run executes one git subcommand in the repository
func (g *Git) run(ctx context.Context, args ...string) error {
	full := append([]string{"-C", g.repoPath}, args...)
	cmd := exec.CommandContext(ctx, g.gitPath, full...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// createPR opens the pull request and returns its URL
func (g *Git) createPR(ctx context.Context, branch, title string, req approval.ChangeRequest) (string, error) {
	body := fmt.Sprintf("Machine-generated change proposal for `%s` (source: %s).", req.FilePath, req.AIType)
	cmd := exec.CommandContext(ctx, g.ghPath,
		"pr", "create",
		"--head", branch,
		"--title", title,
		"--body", body,
	)
	cmd.Dir = g.repoPath
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gh pr create failed: %w", err)
	}

	// gh prints the PR URL as the last line
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	url := strings.TrimSpace(lines[len(lines)-1])
	if url == "" {
		return "", fmt.Errorf("gh pr create returned no URL")
	}
	return url, nil
}

// branchName derives a branch name for one change request
func branchName(req approval.ChangeRequest) string {
	id := req.ProposalID
	if id == "" {
		id = strings.ReplaceAll(req.FilePath, "/", "-")
	}
	return "patchflow/" + sanitize(req.AIType) + "/" + sanitize(id)
}

// sanitize keeps branch components to safe ref characters
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// prNumber extracts the numeric suffix of a pull request URL
func prNumber(url string) (int, error) {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0, fmt.Errorf("malformed pull request URL: %s", url)
	}
	n, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed pull request URL: %s", url)
	}
	return n, nil
}

// CommandBuilder runs a configured shell command as the post-merge build
type CommandBuilder struct {
	command string
	dir     string
}

// NewCommandBuilder creates a builder that runs command via the shell in dir
func NewCommandBuilder(command, dir string) *CommandBuilder {
	return &CommandBuilder{command: command, dir: dir}
}

// Build runs the build command and returns its combined output
func (b *CommandBuilder) Build(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", b.command)
	cmd.Dir = b.dir
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		return text, fmt.Errorf("build command failed: %w: %s", err, tail(text, 400))
	}
	return text, nil
}

// tail returns at most n trailing bytes of s
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
