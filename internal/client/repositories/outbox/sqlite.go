package outbox

import (
	"context"
	"fmt"
	"strings"

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

// Enqueue inserts the item or, when the target id is already queued,
// overwrites op/client_rev/data in place. The original seq is kept, so the
// item stays at its first-edit FIFO position.
func (r *SQLiteRepository) Enqueue(ctx context.Context, item *models.OutboxItem) error {
	query := `INSERT INTO outbox (kind, op, target_id, client_rev, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET kind = excluded.kind,
			op = excluded.op,
			client_rev = excluded.client_rev,
			data = excluded.data
	`
	var data any
	if item.Data != nil {
		data = string(item.Data)
	}
	_, err := r.db.ExecContext(ctx, query,
		string(item.Kind), string(item.Op), item.TargetID, item.ClientRev, data)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox item: %w", err)
	}
	return nil
}

// Peek reads up to limit items in insertion order without removing them.
func (r *SQLiteRepository) Peek(ctx context.Context, limit int) ([]*models.OutboxItem, error) {
	query := `SELECT seq, kind, op, target_id, client_rev, data
		FROM outbox ORDER BY seq LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox items: %w", err)
	}
	defer rows.Close()

	var result []*models.OutboxItem
	for rows.Next() {
		var (
			item models.OutboxItem
			kind string
			op   string
			data []byte
		)
		if err := rows.Scan(&item.Seq, &kind, &op, &item.TargetID, &item.ClientRev, &data); err != nil {
			return nil, err
		}
		item.Kind = models.Kind(kind)
		item.Op = models.Op(op)
		if len(data) > 0 {
			item.Data = data
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes items by target id (not by seq), in one batch.
func (r *SQLiteRepository) Remove(ctx context.Context, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(targetIDs)), ",")
	args := make([]any, len(targetIDs))
	for i, id := range targetIDs {
		args[i] = id
	}
	query := `DELETE FROM outbox WHERE target_id IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove outbox items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM outbox`); err != nil {
		return fmt.Errorf("failed to clear outbox: %w", err)
	}
	return nil
}
