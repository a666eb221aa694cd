package entities

import (
	"context"
	"database/sql"
	"encoding/json"
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

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entityColumns = `id, type, title, content, parent, metadata, tags,
	created_at, updated_at, rev, server_updated_at, deleted, deleted_at`

// Upsert writes the full record by id. On conflict, every column except id
// is overwritten.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.Entity) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type,
			title = excluded.title,
			content = excluded.content,
			parent = excluded.parent,
			metadata = excluded.metadata,
			tags = excluded.tags,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			rev = excluded.rev,
			server_updated_at = excluded.server_updated_at,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, string(e.Type), e.Title, e.Content, nullable(e.Parent), string(metadata), string(tags),
		e.CreatedAt, e.UpdatedAt, e.Rev, e.ServerUpdatedAt, e.Deleted, e.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

// GetByID returns the record for id, tombstones included.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

// SoftDelete tombstones the record. An unknown id becomes a bare tombstone
// row, so deletion learned from the server sticks even for records never
// seen locally.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, deletedAt string) error {
	query := `INSERT INTO entities (id, type, title, content, metadata, tags,
			created_at, updated_at, rev, server_updated_at, deleted, deleted_at)
		VALUES (?, 'note', '', '', '{}', '[]', ?, ?, 0, '', 1, ?)
		ON CONFLICT(id) DO UPDATE SET deleted = 1,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, id, deletedAt, deletedAt, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}

// ListUpdatedSince returns every record with updated_at >= cursor, plus any
// record missing its stamp (those are never silently dropped).
func (r *SQLiteRepository) ListUpdatedSince(ctx context.Context, cursor string) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE updated_at >= ? OR updated_at = '' ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to select entities: %w", err)
	}
	defer rows.Close()

	var result []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes every entity row, tombstones included.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}
	return nil
}

func scanEntity(scan func(dest ...any) error) (*models.Entity, error) {
	var (
		e        models.Entity
		typ      string
		parent   sql.NullString
		metadata string
		tags     string
	)
	err := scan(&e.ID, &typ, &e.Title, &e.Content, &parent, &metadata, &tags,
		&e.CreatedAt, &e.UpdatedAt, &e.Rev, &e.ServerUpdatedAt, &e.Deleted, &e.DeletedAt)
	if err != nil {
		return nil, err
	}
	e.Type = models.EntityType(typ)
	if parent.Valid {
		e.Parent = &parent.String
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	e.Normalize()
	return &e, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
