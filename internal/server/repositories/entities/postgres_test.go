package entities

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestSelectChangedSince(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+id,\s*user_id,\s*payload,\s*rev,\s*server_updated_at,\s*deleted,\s*deleted_at\s+FROM\s+entities\s+WHERE\s+user_id=\$1\s+AND\s+server_updated_at>\$2\s+ORDER\s+BY\s+server_updated_at\s*$`

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := since.Add(time.Hour)
	deletedAt := updated.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"id", "user_id", "payload", "rev", "server_updated_at", "deleted", "deleted_at"}).
		AddRow("e-1", "u-1", []byte(`{"id":"e-1"}`), int64(2), updated, false, nil).
		AddRow("e-2", "u-1", []byte(`{"id":"e-2"}`), int64(5), updated, true, deletedAt)
	mock.ExpectQuery(q).WithArgs("u-1", since).WillReturnRows(rows)

	got, err := repo.SelectChangedSince(context.Background(), "u-1", since)
	if err != nil {
		t.Fatalf("SelectChangedSince error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if got[0].ID != "e-1" || got[0].Rev != 2 || got[0].Deleted {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if !got[1].Deleted || got[1].DeletedAt == nil {
		t.Fatalf("tombstone row lost its markers: %+v", got[1])
	}
}

func TestGetForUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.*FROM\s+entities\s+WHERE\s+user_id=\$1\s+AND\s+id=\$2\s+FOR\s+UPDATE\s*$`

	mock.ExpectQuery(q).WithArgs("u-1", "ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), "u-1", "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGetForUpdate_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.*FROM\s+entities\s+WHERE\s+user_id=\$1\s+AND\s+id=\$2\s+FOR\s+UPDATE\s*$`

	updated := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "payload", "rev", "server_updated_at", "deleted", "deleted_at"}).
		AddRow("e-1", "u-1", []byte(`{"id":"e-1"}`), int64(3), updated, false, nil)
	mock.ExpectQuery(q).WithArgs("u-1", "e-1").WillReturnRows(rows)

	got, err := repo.GetForUpdate(context.Background(), "u-1", "e-1")
	if err != nil {
		t.Fatalf("GetForUpdate error: %v", err)
	}
	if got.Rev != 3 || !got.ServerUpdatedAt.Equal(updated) {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+entities\s*\(id,\s*user_id,\s*payload,\s*rev,\s*server_updated_at,\s*deleted,\s*deleted_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`

	mock.ExpectExec(q).WillReturnError(errors.New("db down"))

	rec := &models.Record{ID: "e-1", UserID: "u-1", Payload: []byte(`{}`), Rev: 1, ServerUpdatedAt: time.Now()}
	err := repo.Insert(context.Background(), rec)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdate_NoRowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+entities\s+SET\s+payload=\$3,\s*rev=\$4,\s*server_updated_at=\$5,\s*deleted=\$6,\s*deleted_at=\$7\s+WHERE\s+user_id=\$1\s+AND\s+id=\$2\s*$`

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

	rec := &models.Record{ID: "ghost", UserID: "u-1", Payload: []byte(`{}`), Rev: 1, ServerUpdatedAt: time.Now()}
	err := repo.Update(context.Background(), rec)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}
