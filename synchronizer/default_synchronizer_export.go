package synchronizer

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

// ExportOne fetches the resource body and its child collection and encodes
// them into a portable entry. The two fetches run concurrently; the entry
// holds the full child set regardless of fetch order.
//
// A capability-gap failure listing children means the deployment variant
// has no child collection for this kind and yields an entry without
// children. A capability-gap failure fetching the body itself propagates:
// the batch layer recognizes the category and reports neither success nor
// failure for the id.
func (s *DefaultSynchronizer) ExportOne(ctx context.Context, kind string, id string) (envelope.Entry, error) {
	var (
		body     resource.Body
		bodyErr  error
		children []resource.Child
		childErr error
	)

	var group errgroup.Group
	group.Go(func() error {
		body, bodyErr = s.Remote.Get(ctx, kind, id)
		return nil
	})
	group.Go(func() error {
		fetched, err := s.Remote.ListChildren(ctx, kind, id)
		if err != nil {
			if faults.IsCapabilityGap(err) {
				s.logger.Debug("child collection not available in this deployment variant",
					zap.String("kind", kind),
					zap.String("id", id),
				)
				return nil
			}
			childErr = err
			return nil
		}
		children = fetched
		return nil
	})
	_ = group.Wait()

	// The body fetch decides the entry's fate; a concurrent child-listing
	// failure must not mask its category.
	if bodyErr != nil {
		return envelope.Entry{}, bodyErr
	}
	if childErr != nil {
		return envelope.Entry{}, childErr
	}

	return envelope.ToEntry(resource.Resource{
		Kind:     kind,
		ID:       id,
		Body:     body,
		Children: children,
	})
}
