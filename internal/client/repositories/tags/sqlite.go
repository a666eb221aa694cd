package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/dbx"
	"github.com/lskl-cc/souzou/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const tagColumns = `id, name, color, description, parent,
	created_at, updated_at, rev, server_updated_at, deleted, deleted_at`

func (r *SQLiteRepository) Upsert(ctx context.Context, t *models.Tag) error {
	query := `INSERT INTO tags (` + tagColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			color = excluded.color,
			description = excluded.description,
			parent = excluded.parent,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			rev = excluded.rev,
			server_updated_at = excluded.server_updated_at,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Color, t.Description, nullable(t.Parent),
		t.CreatedAt, t.UpdatedAt, t.Rev, t.ServerUpdatedAt, t.Deleted, t.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tag: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)
	t, err := scanTag(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return t, nil
}

// SoftDelete tombstones the tag, creating a bare tombstone row for ids the
// local store has never seen.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, deletedAt string) error {
	query := `INSERT INTO tags (id, name, color, description,
			created_at, updated_at, rev, server_updated_at, deleted, deleted_at)
		VALUES (?, '', '', '', ?, ?, 0, '', 1, ?)
		ON CONFLICT(id) DO UPDATE SET deleted = 1,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, id, deletedAt, deletedAt, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListUpdatedSince(ctx context.Context, cursor string) ([]*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags
		WHERE updated_at >= ? OR updated_at = '' ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	return nil
}

func scanTag(scan func(dest ...any) error) (*models.Tag, error) {
	var (
		t      models.Tag
		parent sql.NullString
	)
	err := scan(&t.ID, &t.Name, &t.Color, &t.Description, &parent,
		&t.CreatedAt, &t.UpdatedAt, &t.Rev, &t.ServerUpdatedAt, &t.Deleted, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		t.Parent = &parent.String
	}
	t.Normalize()
	return &t, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
