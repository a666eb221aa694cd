// Package entities provides the PostgreSQL-backed repository for server-side
// entity persistence and sync queries.
package entities

import (
	"context"
	"time"

	"github.com/lskl-cc/souzou/internal/server/models"
)

// Repository is the storage surface the sync service needs for entities.
type Repository interface {
	// SelectChangedSince returns every row, live or tombstoned, with a
	// server timestamp strictly after since.
	SelectChangedSince(ctx context.Context, userID string, since time.Time) ([]*models.Record, error)

	// GetForUpdate reads one row with a row lock, so the rev check and the
	// following write are atomic within the surrounding transaction.
	// Returns common.ErrNotFound when the id is unknown.
	GetForUpdate(ctx context.Context, userID string, id string) (*models.Record, error)

	Insert(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record) error
}
