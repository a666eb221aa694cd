package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/dbx"
	"github.com/lskl-cc/souzou/internal/server/models"
)

// PostgresRepository implements entity storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SelectChangedSince(ctx context.Context, userID string, since time.Time) ([]*models.Record, error) {
	query := `
		SELECT id, user_id, payload, rev, server_updated_at, deleted, deleted_at FROM entities
		WHERE user_id=$1 AND server_updated_at>$2
		ORDER BY server_updated_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select entities: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		var item models.Record
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Payload, &item.Rev, &item.ServerUpdatedAt,
			&item.Deleted, &deletedAt,
		); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			item.DeletedAt = &deletedAt.Time
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID string, id string) (*models.Record, error) {
	query := `
		SELECT id, user_id, payload, rev, server_updated_at, deleted, deleted_at FROM entities
		WHERE user_id=$1 AND id=$2
		FOR UPDATE
	`
	var item models.Record
	var deletedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID, id).Scan(
		&item.ID, &item.UserID, &item.Payload, &item.Rev, &item.ServerUpdatedAt,
		&item.Deleted, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if deletedAt.Valid {
		item.DeletedAt = &deletedAt.Time
	}
	return &item, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO entities (id, user_id, payload, rev, server_updated_at, deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Payload, rec.Rev, rec.ServerUpdatedAt, rec.Deleted, rec.DeletedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE entities
		SET payload=$3, rev=$4, server_updated_at=$5, deleted=$6, deleted_at=$7
		WHERE user_id=$1 AND id=$2
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.ID, rec.Payload, rec.Rev, rec.ServerUpdatedAt, rec.Deleted, rec.DeletedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
