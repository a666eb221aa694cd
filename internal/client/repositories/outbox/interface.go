// Package outbox queues local mutations awaiting transmission to the server.
package outbox

import (
	"context"

	"github.com/lskl-cc/souzou/internal/models"
)

// Repository is the outbox queue. Enqueue coalesces by target id: a second
// edit before sync overwrites the pending item instead of appending, so the
// queue holds at most one item per record.
type Repository interface {
	Enqueue(ctx context.Context, item *models.OutboxItem) error
	Peek(ctx context.Context, limit int) ([]*models.OutboxItem, error)
	Remove(ctx context.Context, targetIDs []string) error
	Clear(ctx context.Context) error
}
