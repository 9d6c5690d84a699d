package synchronizer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// ImportOne reconstitutes one resource tree from its portable entry. The
// operation succeeds when the parent create succeeds: child failures are
// collected into the result, never escalated, and never cancel sibling
// child creates. With Clean set, an existing tree at the id is deleted
// first; only "nothing to clean" is silent, any other pre-clean failure is
// a warning and the create is attempted regardless.
func (s *DefaultSynchronizer) ImportOne(
	ctx context.Context,
	kind string,
	id string,
	entry envelope.Entry,
	policy ImportPolicy,
) (ImportResult, error) {
	res, err := envelope.FromEntry(kind, id, entry)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{ID: id, Name: res.Body.Name()}

	if policy.Clean {
		if err := s.DeleteTree(ctx, kind, id); err != nil && !faults.IsNotFound(err) {
			warning := fmt.Sprintf("pre-clean of %s %q failed: %v", kind, id, err)
			s.logger.Warn("pre-clean failed, attempting create anyway",
				zap.String("kind", kind),
				zap.String("id", id),
				zap.Error(err),
			)
			result.Warnings = append(result.Warnings, warning)
		}
	}

	body, err := s.createParent(ctx, kind, id, res.Body, &result)
	if err != nil {
		return ImportResult{}, err
	}
	res.Body = body

	if len(res.Children) == 0 {
		return result, nil
	}

	var (
		mu        sync.Mutex
		childErrs error
	)
	var group errgroup.Group
	for _, child := range res.Children {
		group.Go(func() error {
			if err := s.Remote.PutChild(ctx, kind, id, child); err != nil {
				mu.Lock()
				childErrs = multierr.Append(childErrs, fmt.Errorf("child %s/%s: %w", child.Type, child.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	result.ChildFailures = childErrs

	return result, nil
}

// createParent writes the parent body, resolving a display-name conflict
// with exactly one deterministic rename retry. A second conflict is a hard
// failure.
func (s *DefaultSynchronizer) createParent(
	ctx context.Context,
	kind string,
	id string,
	body resource.Body,
	result *ImportResult,
) (resource.Body, error) {
	err := s.Remote.Put(ctx, kind, id, body)
	if err == nil {
		return body, nil
	}
	if !faults.IsConflict(err) {
		return nil, err
	}

	desired := body.Name()
	s.Names.MarkTaken(desired)
	finalName := s.Names.Reserve(desired)
	renamed := body.WithName(finalName)

	if retryErr := s.Remote.Put(ctx, kind, id, renamed); retryErr != nil {
		return nil, faults.NewTypedError(
			faults.Category(retryErr),
			fmt.Sprintf("create of %s %q failed again after rename to %q", kind, id, finalName),
			retryErr,
		)
	}

	s.logger.Info("resolved name collision",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.String("name", finalName),
	)
	result.Name = finalName
	result.Renamed = true
	return renamed, nil
}
