// Package snapshotstore persists envelope files locally, either on a plain
// directory tree or on a git worktree that versions every snapshot run.
package snapshotstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
)

// Store is the boundary the CLI writes export results through.
type Store interface {
	Write(ctx context.Context, env *envelope.Envelope) (string, error)
	Read(ctx context.Context, path string) (*envelope.Envelope, error)
	List(ctx context.Context, kind string) ([]string, error)
}

var _ Store = (*FilesystemStore)(nil)

// FilesystemStore lays snapshots out as <root>/<kind>/<snapshot>.yaml.
type FilesystemStore struct {
	Root string
}

func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, faults.NewTypedError(faults.ValidationError, "snapshot store root is required", nil)
	}
	return &FilesystemStore{Root: root}, nil
}

// Write encodes the envelope and persists it under its kind directory. The
// file name is derived from the run id, falling back to a timestamp.
func (s *FilesystemStore) Write(_ context.Context, env *envelope.Envelope) (string, error) {
	data, err := envelope.Encode(env)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.Root, env.Meta.Kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", faults.NewTypedError(faults.InternalError, "create snapshot directory", err)
	}

	path := filepath.Join(dir, snapshotFileName(env))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", faults.NewTypedError(faults.InternalError, "write snapshot file", err)
	}
	return path, nil
}

// Read decodes one snapshot file.
func (s *FilesystemStore) Read(_ context.Context, path string) (*envelope.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.NewTypedError(
				faults.NotFoundError,
				fmt.Sprintf("snapshot %q does not exist", path),
				err,
			)
		}
		return nil, faults.NewTypedError(faults.InternalError, "read snapshot file", err)
	}
	return envelope.Decode(data)
}

// List returns the snapshot file paths of one kind, oldest first by name.
func (s *FilesystemStore) List(_ context.Context, kind string) ([]string, error) {
	dir := filepath.Join(s.Root, kind)
	items, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, faults.NewTypedError(faults.InternalError, "list snapshot directory", err)
	}

	var paths []string
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, item.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func snapshotFileName(env *envelope.Envelope) string {
	name := strings.TrimSpace(env.Meta.RunID)
	if name == "" {
		name = time.Now().UTC().Format("20060102T150405Z")
	}
	return name + ".yaml"
}
