package projection

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Projection is an asynchronous consumer folding events into a read view.
// Each projection declares the fixed set of event types it handles; any
// other type is a no-op for it. Handle must be idempotent per event: the
// pipeline is at-least-once and the same event may arrive twice.
type Projection interface {
	// Name identifies the projection in logs and dead letters.
	Name() string

	// Handles returns the event types this projection consumes.
	Handles() []shared.EventType

	// Handle folds one event into the view. An error means the primary
	// view write failed and the delivery pipeline should retry; failures
	// of secondary effects must be swallowed inside the handler.
	Handle(ctx context.Context, event shared.Event) error
}
