package registry

import (
	"context"
	"log/slog"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/models"
)

// NodeAccess is the restricted node capability surface handed to runnables
// invoked through the AI tool route: find, get, export and ocr only.
type NodeAccess interface {
	Get(ctx context.Context, uuid string) (*models.Node, error)
	Find(ctx context.Context, filters []models.NodeFilter) ([]*models.Node, error)
	Export(ctx context.Context, uuid string) ([]byte, error)
	OCR(ctx context.Context, uuid string) (string, error)
}

// NodeWriter extends NodeAccess with the write operations available to
// action and extension runnables. It is always bound to the invoking
// identity, never to raw unrestricted privilege.
type NodeWriter interface {
	NodeAccess

	Update(ctx context.Context, uuid string, patch models.NodePatch) (*models.Node, error)
	UpdateFile(ctx context.Context, uuid string, file models.FileAttributes) (*models.Node, error)
}

// RunContext is the bounded capability surface a feature body executes with.
// The engine fills Nodes with either the full writer or the restricted
// access surface depending on the invocation route.
type RunContext struct {
	Identity auth.Identity
	Params   map[string]any
	Payload  []byte // raw request payload, extensions only
	Node     *models.Node
	Nodes    NodeAccess
	Writer   NodeWriter // nil on the AI tool route
	Logger   *slog.Logger
}

// Runnable is the executable body of a feature. The engine depends only on
// this interface, never on how the body was loaded.
type Runnable interface {
	Execute(ctx context.Context, runCtx RunContext) (any, error)
}

// RunnableFunc adapts a plain function to the Runnable interface, for
// natively registered feature bodies.
type RunnableFunc func(ctx context.Context, runCtx RunContext) (any, error)

func (f RunnableFunc) Execute(ctx context.Context, runCtx RunContext) (any, error) {
	return f(ctx, runCtx)
}

// RunnableFactory builds the runnable for a feature definition.
type RunnableFactory interface {
	Create(feature models.Feature) (Runnable, error)
	ID() string
}
