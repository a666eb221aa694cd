// Package driver defines the uniform local-storage contract of the client
// and its backend implementations. One driver instance exists per running
// process, selected by the factory at startup; everything above it
// (services, orchestrator) is backend-agnostic.
package driver

import (
	"context"

	"github.com/lskl-cc/souzou/internal/models"
)

// Driver is durable local storage for entities, tags, the outbox queue and
// the sync cursor. Storage failures propagate to the caller unretried;
// retry policy lives with the sync layer.
type Driver interface {
	// GetEntity returns the record for id, tombstones included.
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	// PutEntity writes the full record by id, overwriting any previous state.
	PutEntity(ctx context.Context, e *models.Entity) error
	// DeleteEntity tombstones the record (soft delete); the row is never
	// physically removed.
	DeleteEntity(ctx context.Context, id string) error
	// ListEntitiesUpdatedSince returns all entities with updated_at >= cursor
	// or with the stamp missing.
	ListEntitiesUpdatedSince(ctx context.Context, cursor string) ([]*models.Entity, error)

	GetTag(ctx context.Context, id string) (*models.Tag, error)
	PutTag(ctx context.Context, t *models.Tag) error
	DeleteTag(ctx context.Context, id string) error
	ListTagsUpdatedSince(ctx context.Context, cursor string) ([]*models.Tag, error)

	// EnqueueEntity queues an entity mutation, coalescing with any pending
	// item for the same target id.
	EnqueueEntity(ctx context.Context, item *models.OutboxItem) error
	// EnqueueTag queues a tag mutation with the same coalescing rule.
	EnqueueTag(ctx context.Context, item *models.OutboxItem) error
	// PeekOutbox reads up to limit queued items in FIFO order, non-destructive.
	PeekOutbox(ctx context.Context, limit int) ([]*models.OutboxItem, error)
	// RemoveFromOutbox deletes queued items by target id, in one batch.
	RemoveFromOutbox(ctx context.Context, targetIDs []string) error

	// GetCursor returns the persisted pull watermark, "" when never set.
	GetCursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, value string) error

	// ClearAllData wipes entities, tags, outbox and cursor.
	ClearAllData(ctx context.Context) error

	Close() error
}
