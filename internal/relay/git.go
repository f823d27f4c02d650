package relay

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// GitConfig describes where and how snapshots are committed.
type GitConfig struct {
	// RepoPath is the worktree root; the store's files must live below it.
	RepoPath string
	// Remote is the remote name to push to. Empty means commit only.
	Remote string
	// Branch is the remote branch receiving HEAD.
	Branch string
	// AuthorName and AuthorEmail sign the commits.
	AuthorName  string
	AuthorEmail string
	// Auth is passed to push; nil uses the transport defaults.
	Auth transport.AuthMethod
}

// GitPublisher stages, commits and pushes store files with go-git.
type GitPublisher struct {
	cfg  GitConfig
	repo *git.Repository
	root string
}

// NewGitPublisher opens the repository at cfg.RepoPath.
func NewGitPublisher(cfg GitConfig) (*GitPublisher, error) {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "enrollkeeper"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "enrollkeeper@localhost"
	}

	root, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", root, err)
	}
	return &GitPublisher{cfg: cfg, repo: repo, root: root}, nil
}

// Publish adds paths, commits them with message and pushes HEAD to the
// configured branch. A clean tree and an up-to-date remote are not errors.
func (g *GitPublisher) Publish(ctx context.Context, paths []string, message string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	for _, p := range paths {
		rel, err := g.relative(p)
		if err != nil {
			return err
		}
		if _, err := wt.Add(rel); err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
	}

	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.cfg.AuthorName,
			Email: g.cfg.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil && !errors.Is(err, git.ErrEmptyCommit) {
		return fmt.Errorf("commit: %w", err)
	}

	if g.cfg.Remote == "" {
		return nil
	}
	head, err := g.repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	refSpec := config.RefSpec(fmt.Sprintf("%s:refs/heads/%s", head.Name(), g.cfg.Branch))
	err = g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: g.cfg.Remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       g.cfg.Auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push %s %s: %w", g.cfg.Remote, g.cfg.Branch, err)
	}
	return nil
}

// relative converts p into a slash-separated path inside the worktree.
func (g *GitPublisher) relative(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	rel, err := filepath.Rel(g.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside repository %s", p, g.root)
	}
	return filepath.ToSlash(rel), nil
}
