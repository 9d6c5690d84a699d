package synchronizer

import (
	"go.uber.org/zap"

	"github.com/szylko/treeport/collision"
	"github.com/szylko/treeport/remote"
)

var _ Synchronizer = (*DefaultSynchronizer)(nil)

// DefaultSynchronizer implements export, import, and tree deletion against
// a remote resource service. One instance serves one batch run: the name
// registry it carries scopes collision renames to that run.
type DefaultSynchronizer struct {
	Remote remote.ResourceService
	Names  *collision.Registry

	logger *zap.Logger
}

func NewDefaultSynchronizer(service remote.ResourceService, names *collision.Registry, logger *zap.Logger) *DefaultSynchronizer {
	if names == nil {
		names = collision.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultSynchronizer{
		Remote: service,
		Names:  names,
		logger: logger,
	}
}
