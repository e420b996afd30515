package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"

	"github.com/recallkit/recall/internal/domain"
)

// GitResolver resolves criteria against the worktree of a git repository.
// Refresh clones or pulls; Resolve stays a pure query over the checked-out
// corpus.
type GitResolver struct {
	url    string
	dir    string
	fs     *FSResolver
	logger *slog.Logger
}

// NewGitResolver returns a resolver for the repository at url, checked out
// under dir.
func NewGitResolver(url, dir string, logger *slog.Logger) *GitResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitResolver{url: url, dir: dir, fs: NewFSResolver(dir), logger: logger}
}

// Refresh clones the repository if it is not present at the local path, or
// pulls the latest changes if it is.
func (r *GitResolver) Refresh(ctx context.Context) error {
	_, err := os.Stat(r.dir)
	switch {
	case os.IsNotExist(err):
		r.logger.Info("cloning corpus repository", "url", r.url, "dir", r.dir)
		_, err := git.PlainCloneContext(ctx, r.dir, false, &git.CloneOptions{URL: r.url})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", r.url, err)
		}

	case err == nil:
		repo, err := git.PlainOpen(r.dir)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", r.dir, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", r.dir, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", r.dir, err)
		}

	default:
		return fmt.Errorf("error checking path %s: %w", r.dir, err)
	}
	return nil
}

// Resolve delegates to a filesystem resolver over the worktree.
func (r *GitResolver) Resolve(ctx context.Context, criteria domain.Criteria) ([]string, error) {
	return r.fs.Resolve(ctx, criteria)
}
