package remote

import (
	"context"

	"github.com/szylko/treeport/resource"
)

// ResourceService is the consumed remote backend boundary. Implementations
// must report failures through faults.TypedError so callers can distinguish
// NotFoundError, ConflictError, CapabilityGapError, AuthError, and
// TransportError outcomes.
type ResourceService interface {
	Get(ctx context.Context, kind string, id string) (resource.Body, error)
	List(ctx context.Context, kind string) ([]string, error)
	Put(ctx context.Context, kind string, id string, body resource.Body) error
	Delete(ctx context.Context, kind string, id string) error

	// Child operations apply to tree-shaped kinds. Backends whose deployment
	// variant has no child collection for the kind fail with
	// CapabilityGapError, which callers treat as "no children".
	ListChildren(ctx context.Context, kind string, id string) ([]resource.Child, error)
	PutChild(ctx context.Context, kind string, id string, child resource.Child) error
	DeleteChild(ctx context.Context, kind string, id string, childType string, childID string) error
}

// CredentialProvider supplies the bearer credential for remote calls. It
// replaces any ambient process-wide session state; every service
// constructor takes one explicitly.
type CredentialProvider interface {
	AccessToken(ctx context.Context) (string, error)
}
