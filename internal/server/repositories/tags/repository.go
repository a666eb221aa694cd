// Package tags provides the PostgreSQL-backed repository for server-side
// tag persistence and sync queries.
package tags

import (
	"context"
	"time"

	"github.com/lskl-cc/souzou/internal/server/models"
)

// Repository is the storage surface the sync service needs for tags.
type Repository interface {
	SelectChangedSince(ctx context.Context, userID string, since time.Time) ([]*models.Record, error)

	// GetForUpdate locks the row for the remainder of the transaction.
	// Returns common.ErrNotFound when the id is unknown.
	GetForUpdate(ctx context.Context, userID string, id string) (*models.Record, error)

	Insert(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record) error
}
