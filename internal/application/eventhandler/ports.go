// Package eventhandler contains the projections: asynchronous consumers
// that fold committed events into read-optimized views. Handlers are
// idempotent per event because the delivery pipeline is at-least-once.
package eventhandler

import (
	"context"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Notifier publishes integration events to other bounded contexts. It is
// assumed unreliable: projections call it fire-and-forget after the view
// write, and its failures are never allowed to fail or retry that write.
type Notifier interface {
	Notify(ctx context.Context, event shared.Event) error
}

// NameIndex is the best-effort "is this name taken" index consulted by the
// create-envelope pre-check. It only reduces registry contention; the
// registry fold stays authoritative.
type NameIndex interface {
	Mark(ctx context.Context, scope, key string) error
	Unmark(ctx context.Context, scope, key string) error
}
