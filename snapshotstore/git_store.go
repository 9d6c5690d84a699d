package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
)

const (
	gitAuthorName  = "treeport"
	gitAuthorEmail = "treeport@local"
)

var _ Store = (*GitStore)(nil)

// GitStore wraps a FilesystemStore and commits every written snapshot, so
// the snapshot root doubles as a history of what was exported when.
type GitStore struct {
	files *FilesystemStore
}

func NewGitStore(root string) (*GitStore, error) {
	files, err := NewFilesystemStore(root)
	if err != nil {
		return nil, err
	}
	return &GitStore{files: files}, nil
}

// Init opens the repository at the store root, creating it when absent.
func (s *GitStore) Init(context.Context) error {
	_, err := s.openOrInit()
	return err
}

func (s *GitStore) openOrInit() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(s.files.Root)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, faults.NewTypedError(faults.InternalError, "open snapshot repository", err)
	}

	repo, err = gogit.PlainInit(s.files.Root, false)
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "initialize snapshot repository", err)
	}
	return repo, nil
}

// Write persists the envelope and commits the snapshot root.
func (s *GitStore) Write(ctx context.Context, env *envelope.Envelope) (string, error) {
	path, err := s.files.Write(ctx, env)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("snapshot %s run %s", env.Meta.Kind, env.Meta.RunID)
	if _, err := s.commit(message); err != nil {
		return "", err
	}
	return path, nil
}

// commit stages the full worktree and commits it. A clean worktree is not an
// error and yields no commit.
func (s *GitStore) commit(message string) (bool, error) {
	repo, err := s.openOrInit()
	if err != nil {
		return false, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return false, faults.NewTypedError(faults.InternalError, "access snapshot worktree", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return false, faults.NewTypedError(faults.InternalError, "read snapshot worktree status", err)
	}
	if status.IsClean() {
		return false, nil
	}

	if err := worktree.AddGlob("."); err != nil {
		return false, faults.NewTypedError(faults.InternalError, "stage snapshot files", err)
	}

	_, err = worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  gitAuthorName,
			Email: gitAuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, faults.NewTypedError(faults.InternalError, "commit snapshot files", err)
	}
	return true, nil
}

func (s *GitStore) Read(ctx context.Context, path string) (*envelope.Envelope, error) {
	return s.files.Read(ctx, path)
}

func (s *GitStore) List(ctx context.Context, kind string) ([]string, error) {
	return s.files.List(ctx, kind)
}
