// Package entities stores note entities in the local database.
package entities

import (
	"context"

	"github.com/lskl-cc/souzou/internal/models"
)

// Repository is the local persistence surface for entities. Deletes are
// always soft: the record stays behind as a tombstone.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	Upsert(ctx context.Context, e *models.Entity) error
	SoftDelete(ctx context.Context, id string, deletedAt string) error
	ListUpdatedSince(ctx context.Context, cursor string) ([]*models.Entity, error)
	Clear(ctx context.Context) error
}
