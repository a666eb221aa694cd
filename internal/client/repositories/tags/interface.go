// Package tags stores tags in the local database.
package tags

import (
	"context"

	"github.com/lskl-cc/souzou/internal/models"
)

// Repository mirrors the entity repository for tags; deletes are soft.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Tag, error)
	Upsert(ctx context.Context, t *models.Tag) error
	SoftDelete(ctx context.Context, id string, deletedAt string) error
	ListUpdatedSince(ctx context.Context, cursor string) ([]*models.Tag, error)
	Clear(ctx context.Context) error
}
