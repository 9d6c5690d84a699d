package synchronizer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/szylko/treeport/faults"
)

// DeleteTree removes a full resource tree: every current child first, then
// the parent. One child failing does not block the others, and the parent
// delete is attempted regardless of child outcomes. A parent-delete
// failure after some children were already removed is reported with the
// residual state named.
func (s *DefaultSynchronizer) DeleteTree(ctx context.Context, kind string, id string) error {
	children, err := s.Remote.ListChildren(ctx, kind, id)
	if err != nil {
		switch {
		case faults.IsCapabilityGap(err):
			children = nil
		case faults.IsNotFound(err):
			return err
		default:
			s.logger.Warn("listing children before delete failed, deleting parent only",
				zap.String("kind", kind),
				zap.String("id", id),
				zap.Error(err),
			)
			children = nil
		}
	}

	var (
		mu        sync.Mutex
		childErrs error
		deleted   int
	)
	var group errgroup.Group
	for _, child := range children {
		group.Go(func() error {
			if err := s.Remote.DeleteChild(ctx, kind, id, child.Type, child.ID); err != nil {
				mu.Lock()
				childErrs = multierr.Append(childErrs, fmt.Errorf("child %s/%s: %w", child.Type, child.ID, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			deleted++
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if err := s.Remote.Delete(ctx, kind, id); err != nil {
		if deleted > 0 && !faults.IsNotFound(err) {
			return faults.NewTypedError(
				faults.Category(err),
				fmt.Sprintf("parent delete of %s %q failed after %d of %d children were removed, remote state is partial", kind, id, deleted, len(children)),
				err,
			)
		}
		return err
	}

	return childErrs
}
