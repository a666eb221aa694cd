package driver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/lskl-cc/souzou/internal/client/migrations"
	"github.com/lskl-cc/souzou/internal/client/repositories/entities"
	"github.com/lskl-cc/souzou/internal/client/repositories/outbox"
	"github.com/lskl-cc/souzou/internal/client/repositories/syncmeta"
	"github.com/lskl-cc/souzou/internal/client/repositories/tags"
	"github.com/lskl-cc/souzou/internal/dbx"
	"github.com/lskl-cc/souzou/internal/models"
)

// SQLiteDriver is the durable reference implementation of Driver, composed
// of per-table repositories over one database handle.
type SQLiteDriver struct {
	db       *sql.DB
	entities entities.Repository
	tags     tags.Repository
	outbox   outbox.Repository
	meta     syncmeta.Repository
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// NewSQLiteDriver opens dsn with the pure-Go sqlite driver, migrates the
// schema and returns a ready Driver.
func NewSQLiteDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return newSQLiteDriver(db), nil
}

func newSQLiteDriver(db *sql.DB) *SQLiteDriver {
	return &SQLiteDriver{
		db:       db,
		entities: entities.NewSQLiteRepository(db),
		tags:     tags.NewSQLiteRepository(db),
		outbox:   outbox.NewSQLiteRepository(db),
		meta:     syncmeta.NewSQLiteRepository(db),
	}
}

func (d *SQLiteDriver) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return d.entities.GetByID(ctx, id)
}

func (d *SQLiteDriver) PutEntity(ctx context.Context, e *models.Entity) error {
	e.Normalize()
	return d.entities.Upsert(ctx, e)
}

func (d *SQLiteDriver) DeleteEntity(ctx context.Context, id string) error {
	return d.entities.SoftDelete(ctx, id, models.Now())
}

func (d *SQLiteDriver) ListEntitiesUpdatedSince(ctx context.Context, cursor string) ([]*models.Entity, error) {
	return d.entities.ListUpdatedSince(ctx, cursor)
}

func (d *SQLiteDriver) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	return d.tags.GetByID(ctx, id)
}

func (d *SQLiteDriver) PutTag(ctx context.Context, t *models.Tag) error {
	t.Normalize()
	return d.tags.Upsert(ctx, t)
}

func (d *SQLiteDriver) DeleteTag(ctx context.Context, id string) error {
	return d.tags.SoftDelete(ctx, id, models.Now())
}

func (d *SQLiteDriver) ListTagsUpdatedSince(ctx context.Context, cursor string) ([]*models.Tag, error) {
	return d.tags.ListUpdatedSince(ctx, cursor)
}

func (d *SQLiteDriver) EnqueueEntity(ctx context.Context, item *models.OutboxItem) error {
	item.Kind = models.KindEntity
	return d.outbox.Enqueue(ctx, item)
}

func (d *SQLiteDriver) EnqueueTag(ctx context.Context, item *models.OutboxItem) error {
	item.Kind = models.KindTag
	return d.outbox.Enqueue(ctx, item)
}

func (d *SQLiteDriver) PeekOutbox(ctx context.Context, limit int) ([]*models.OutboxItem, error) {
	return d.outbox.Peek(ctx, limit)
}

func (d *SQLiteDriver) RemoveFromOutbox(ctx context.Context, targetIDs []string) error {
	return d.outbox.Remove(ctx, targetIDs)
}

func (d *SQLiteDriver) GetCursor(ctx context.Context) (string, error) {
	return d.meta.Get(ctx, syncmeta.CursorKey)
}

func (d *SQLiteDriver) SetCursor(ctx context.Context, value string) error {
	return d.meta.Set(ctx, syncmeta.CursorKey, value)
}

// ClearAllData wipes all four collections in one transaction.
func (d *SQLiteDriver) ClearAllData(ctx context.Context) error {
	return dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := entities.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		if err := tags.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		if err := outbox.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return syncmeta.NewSQLiteRepository(tx).Clear(ctx)
	})
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}
