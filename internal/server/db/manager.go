// Package db wires the server's PostgreSQL connection, repositories and
// schema migrations behind a single manager.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/lskl-cc/souzou/internal/server/migrations"
	"github.com/lskl-cc/souzou/internal/server/repositories/entities"
	"github.com/lskl-cc/souzou/internal/server/repositories/tags"
)

// RepositoryManager owns the database handle and the repositories bound to it.
type RepositoryManager interface {
	Conn() *sql.DB
	Entities() entities.Repository
	Tags() tags.Repository
	Close() error
}

type PostgresRepositoryManager struct {
	db       *sql.DB
	entities entities.Repository
	tags     tags.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Entities() entities.Repository {
	return m.entities
}

func (m *PostgresRepositoryManager) Tags() tags.Repository {
	return m.tags
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

// waitForDB pings the database with fibonacci backoff. The database often
// starts alongside the server (compose), so the first pings may fail.
func waitForDB(ctx context.Context, db *sql.DB) error {
	backoff := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func NewPostgresRepositoryManager(ctx context.Context, dsn string) (RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:       db,
		entities: entities.NewPostgresRepository(db),
		tags:     tags.NewPostgresRepository(db),
	}

	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
