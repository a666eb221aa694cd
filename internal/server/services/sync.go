// Package services implements the server side of the pull/push contract.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/dbx"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/models"
	smodels "github.com/lskl-cc/souzou/internal/server/models"
	"github.com/lskl-cc/souzou/internal/server/repositories/entities"
	"github.com/lskl-cc/souzou/internal/server/repositories/tags"
	"github.com/lskl-cc/souzou/internal/syncapi"
)

// Repos bundles the per-collection repositories bound to one DBTX.
type Repos struct {
	Entities entities.Repository
	Tags     tags.Repository
}

// ReposFactory binds repositories to a handle; the push path passes a
// transaction so the rev check and the write share one lock scope.
type ReposFactory func(db dbx.DBTX) Repos

// PostgresRepos is the production factory.
func PostgresRepos(db dbx.DBTX) Repos {
	return Repos{
		Entities: entities.NewPostgresRepository(db),
		Tags:     tags.NewPostgresRepository(db),
	}
}

// SyncService answers pulls and applies pushes. It is the sole owner of
// revision numbers and server timestamps.
type SyncService struct {
	db    *sql.DB
	repos ReposFactory
	log   logging.Logger

	// now is a test seam for the clock.
	now func() time.Time
}

func NewSyncService(db *sql.DB, repos ReposFactory, log logging.Logger) *SyncService {
	return &SyncService{db: db, repos: repos, log: log, now: time.Now}
}

// Pull returns every change recorded after the client's cursor, plus a new
// cursor taken from the server clock. An absent or unreadable cursor reads
// as the epoch, which yields the full dataset.
func (s *SyncService) Pull(ctx context.Context, userID string, since string) (*syncapi.PullResponse, error) {
	sinceTime := time.Unix(0, 0).UTC()
	if since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			sinceTime = t
		}
	}

	// The cursor is stamped before the queries run; a write landing mid-pull
	// is re-sent on the next pull rather than lost.
	cursor := s.now().UTC()

	repos := s.repos(s.db)

	entityRecs, err := repos.Entities.SelectChangedSince(ctx, userID, sinceTime)
	if err != nil {
		return nil, fmt.Errorf("pull entities: %w", err)
	}
	tagRecs, err := repos.Tags.SelectChangedSince(ctx, userID, sinceTime)
	if err != nil {
		return nil, fmt.Errorf("pull tags: %w", err)
	}

	resp := &syncapi.PullResponse{Cursor: cursor.Format(models.TimeLayout)}
	resp.Changes.Entities.Upserts = []models.Entity{}
	resp.Changes.Entities.Deletes = []string{}
	resp.Changes.Tags.Upserts = []models.Tag{}
	resp.Changes.Tags.Deletes = []string{}

	for _, rec := range entityRecs {
		if rec.Deleted {
			resp.Changes.Entities.Deletes = append(resp.Changes.Entities.Deletes, rec.ID)
			continue
		}
		var e models.Entity
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			s.log.Error(ctx, "skipping unreadable entity payload", "id", rec.ID, "error", err)
			continue
		}
		stampEntity(&e, rec)
		resp.Changes.Entities.Upserts = append(resp.Changes.Entities.Upserts, e)
	}

	for _, rec := range tagRecs {
		if rec.Deleted {
			resp.Changes.Tags.Deletes = append(resp.Changes.Tags.Deletes, rec.ID)
			continue
		}
		var t models.Tag
		if err := json.Unmarshal(rec.Payload, &t); err != nil {
			s.log.Error(ctx, "skipping unreadable tag payload", "id", rec.ID, "error", err)
			continue
		}
		stampTag(&t, rec)
		resp.Changes.Tags.Upserts = append(resp.Changes.Tags.Upserts, t)
	}

	return resp, nil
}

// Push applies a batch of change ops inside one transaction. Each op gets a
// per-item verdict; a rejected op never fails the batch. The rule for an
// existing row: client_rev must equal the stored rev plus one, otherwise the
// op conflicts and the stored record is returned.
func (s *SyncService) Push(ctx context.Context, userID string, req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
	resp := &syncapi.PushResponse{
		Entities: []syncapi.PushResultItem{},
		Tags:     []syncapi.PushResultItem{},
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repos := s.repos(tx)

		for _, op := range req.Entities {
			resp.Entities = append(resp.Entities, s.applyOp(ctx, repos.Entities, userID, op))
		}
		for _, op := range req.Tags {
			resp.Tags = append(resp.Tags, s.applyOp(ctx, repos.Tags, userID, op))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}

	return resp, nil
}

// recordStore is the part of the repositories applyOp needs; both collections
// satisfy it.
type recordStore interface {
	GetForUpdate(ctx context.Context, userID string, id string) (*smodels.Record, error)
	Insert(ctx context.Context, rec *smodels.Record) error
	Update(ctx context.Context, rec *smodels.Record) error
}

func (s *SyncService) applyOp(ctx context.Context, store recordStore, userID string, op models.ChangeOp) syncapi.PushResultItem {
	if op.ID == "" {
		return syncapi.PushResultItem{Status: syncapi.StatusError, Error: "missing id"}
	}

	now := s.now().UTC()

	existing, err := store.GetForUpdate(ctx, userID, op.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return syncapi.PushResultItem{ID: op.ID, Status: syncapi.StatusError, Error: err.Error()}
	}

	if existing == nil {
		if op.Op == models.OpDelete {
			// Nothing to delete; the client drops the pending op.
			return syncapi.PushResultItem{ID: op.ID, Status: syncapi.StatusApplied, Rev: 0}
		}

		rec := &smodels.Record{
			ID:              op.ID,
			UserID:          userID,
			Payload:         op.Data,
			Rev:             newRecordRev(op.ClientRev),
			ServerUpdatedAt: now,
		}
		if err := store.Insert(ctx, rec); err != nil {
			return syncapi.PushResultItem{ID: op.ID, Status: syncapi.StatusError, Error: err.Error()}
		}
		return applied(rec)
	}

	if op.ClientRev != existing.Rev+1 {
		server, err := serializeRecord(existing)
		if err != nil {
			return syncapi.PushResultItem{ID: op.ID, Status: syncapi.StatusError, Error: err.Error()}
		}
		return syncapi.PushResultItem{ID: op.ID, Status: syncapi.StatusConflict, Server: server}
	}

	existing.Rev++
	existing.ServerUpdatedAt = now
	if op.Op == models.OpDelete {
		existing.Deleted = true
		existing.DeletedAt = &now
	} else {
		existing.Payload = op.Data
		existing.Deleted = false
		existing.DeletedAt = nil
	}

	if err := store.Update(ctx, existing); err != nil {
		return syncapi.PushResultItem{ID: op.ID, Status: syncapi.StatusError, Error: err.Error()}
	}
	return applied(existing)
}

// newRecordRev picks the revision of a freshly created row. A client that
// never synced sends 0 or 1; anything higher is preserved so the client's
// counter stays monotonic after a server-side reset.
func newRecordRev(clientRev int64) int64 {
	if clientRev <= 1 {
		return 1
	}
	return clientRev
}

func applied(rec *smodels.Record) syncapi.PushResultItem {
	return syncapi.PushResultItem{
		ID:              rec.ID,
		Status:          syncapi.StatusApplied,
		Rev:             rec.Rev,
		ServerUpdatedAt: rec.ServerUpdatedAt.Format(models.TimeLayout),
	}
}

func stampEntity(e *models.Entity, rec *smodels.Record) {
	e.ID = rec.ID
	e.Rev = rec.Rev
	e.ServerUpdatedAt = rec.ServerUpdatedAt.Format(models.TimeLayout)
	e.Deleted = rec.Deleted
	e.DeletedAt = ""
	if rec.DeletedAt != nil {
		e.DeletedAt = rec.DeletedAt.Format(models.TimeLayout)
	}
	e.Normalize()
}

func stampTag(t *models.Tag, rec *smodels.Record) {
	t.ID = rec.ID
	t.Rev = rec.Rev
	t.ServerUpdatedAt = rec.ServerUpdatedAt.Format(models.TimeLayout)
	t.Deleted = rec.Deleted
	t.DeletedAt = ""
	if rec.DeletedAt != nil {
		t.DeletedAt = rec.DeletedAt.Format(models.TimeLayout)
	}
	t.Normalize()
}

// serializeRecord produces the conflict body: the stored payload with the
// server-owned fields written over it.
func serializeRecord(rec *smodels.Record) (json.RawMessage, error) {
	fields := map[string]any{}
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &fields); err != nil {
			return nil, fmt.Errorf("stored payload unreadable: %w", err)
		}
	}
	fields["id"] = rec.ID
	fields["rev"] = rec.Rev
	fields["server_updated_at"] = rec.ServerUpdatedAt.Format(models.TimeLayout)
	fields["deleted"] = rec.Deleted
	if rec.DeletedAt != nil {
		fields["deleted_at"] = rec.DeletedAt.Format(models.TimeLayout)
	}
	return json.Marshal(fields)
}
