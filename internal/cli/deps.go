package cli

import (
	"context"

	"github.com/szylko/treeport/config"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/remote"
	"github.com/szylko/treeport/snapshotstore"
	"github.com/szylko/treeport/synchronizer"
)

// Engine bundles the services one resolved context gives a command.
type Engine struct {
	Remote remote.ResourceService
	Sync   synchronizer.Synchronizer
	Store  snapshotstore.Store
}

// EngineFactory builds an engine from a resolved context. Commands that do
// not talk to the backend never invoke it.
type EngineFactory func(cfg config.Context, flags *GlobalFlags) (*Engine, error)

type Dependencies struct {
	Contexts  config.ContextService
	NewEngine EngineFactory
}

type GlobalFlags struct {
	Context string
	Verbose bool
}

func requireContexts(deps Dependencies) (config.ContextService, error) {
	if deps.Contexts == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "context service is not configured", nil)
	}
	return deps.Contexts, nil
}

func resolveEngine(ctx context.Context, deps Dependencies, flags *GlobalFlags) (*Engine, error) {
	contexts, err := requireContexts(deps)
	if err != nil {
		return nil, err
	}

	cfg, err := contexts.ResolveContext(ctx, config.ContextSelection{Name: flags.Context})
	if err != nil {
		return nil, err
	}

	factory := deps.NewEngine
	if factory == nil {
		factory = buildEngine
	}
	return factory(cfg, flags)
}
