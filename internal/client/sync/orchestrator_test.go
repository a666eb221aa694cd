package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lskl-cc/souzou/internal/client/driver"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/models"
	"github.com/lskl-cc/souzou/internal/syncapi"
)

// fakeTransport scripts pull/push responses and records what was sent.
type fakeTransport struct {
	pullResp *syncapi.PullResponse
	pullErr  error
	pullSeen []string

	pushFn   func(req *syncapi.PushRequest) (*syncapi.PushResponse, error)
	pushSeen []*syncapi.PushRequest

	pingErr error
}

func (f *fakeTransport) Pull(ctx context.Context, cursor string) (*syncapi.PullResponse, error) {
	f.pullSeen = append(f.pullSeen, cursor)
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResp != nil {
		return f.pullResp, nil
	}
	return emptyPull("2026-03-01T00:00:00.000000Z"), nil
}

func (f *fakeTransport) Push(ctx context.Context, req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
	f.pushSeen = append(f.pushSeen, req)
	if f.pushFn != nil {
		return f.pushFn(req)
	}
	return &syncapi.PushResponse{}, nil
}

func (f *fakeTransport) Ping(ctx context.Context) error { return f.pingErr }

func emptyPull(cursor string) *syncapi.PullResponse {
	resp := &syncapi.PullResponse{Cursor: cursor}
	resp.Changes.Entities.Upserts = []models.Entity{}
	resp.Changes.Entities.Deletes = []string{}
	resp.Changes.Tags.Upserts = []models.Tag{}
	resp.Changes.Tags.Deletes = []string{}
	return resp
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestOrchestrator(tr *fakeTransport) (*Orchestrator, *driver.MemoryDriver) {
	d := driver.NewMemoryDriver()
	return NewOrchestrator(d, tr, discardLogger()), d
}

func enqueueEntityUpsert(t *testing.T, d driver.Driver, e *models.Entity) {
	t.Helper()
	data, err := e.Snapshot()
	require.NoError(t, err)
	require.NoError(t, d.EnqueueEntity(context.Background(), &models.OutboxItem{
		Op: models.OpUpsert, TargetID: e.ID, ClientRev: e.Rev + 1, Data: data,
	}))
}

// Offline edit, then reconnect: the record is pushed, stamped with the
// server's verdict and drained from the outbox.
func TestSyncNow_PushApplied(t *testing.T) {
	ctx := context.Background()

	tr := &fakeTransport{
		pushFn: func(req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
			require.Len(t, req.Entities, 1)
			return &syncapi.PushResponse{
				Entities: []syncapi.PushResultItem{
					{ID: "e-1", Status: syncapi.StatusApplied, Rev: 1, ServerUpdatedAt: "2026-03-01T00:00:00.000000Z"},
				},
			}, nil
		},
	}
	orch, d := newTestOrchestrator(tr)

	e := &models.Entity{ID: "e-1", Title: "Offline Note"}
	require.NoError(t, d.PutEntity(ctx, e))
	enqueueEntityUpsert(t, d, e)

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pushed)

	got, err := d.GetEntity(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Rev)
	assert.Equal(t, "2026-03-01T00:00:00.000000Z", got.ServerUpdatedAt)

	items, err := d.PeekOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// Remote changes land locally and the cursor advances only after they apply.
func TestSyncNow_PullAppliesAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()

	pull := emptyPull("2026-03-02T00:00:00.000000Z")
	pull.Changes.Entities.Upserts = []models.Entity{
		{ID: "e-remote", Title: "From Server", Rev: 4, ServerUpdatedAt: "2026-03-01T23:00:00.000000Z"},
	}
	pull.Changes.Tags.Deletes = []string{"t-gone"}

	tr := &fakeTransport{pullResp: pull}
	orch, d := newTestOrchestrator(tr)

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Pulled)

	got, err := d.GetEntity(ctx, "e-remote")
	require.NoError(t, err)
	assert.Equal(t, "From Server", got.Title)
	assert.Equal(t, int64(4), got.Rev)

	cursor, err := d.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02T00:00:00.000000Z", cursor)
}

// A pulled delete for an id this device never saw still leaves a readable
// tombstone, so the deletion state is queryable.
func TestSyncNow_PulledDeleteOfUnknownID(t *testing.T) {
	ctx := context.Background()

	pull := emptyPull("2026-03-02T00:00:00.000000Z")
	pull.Changes.Entities.Deletes = []string{"never-seen"}

	tr := &fakeTransport{pullResp: pull}
	orch, d := newTestOrchestrator(tr)

	_, err := orch.SyncNow(ctx)
	require.NoError(t, err)

	got, err := d.GetEntity(ctx, "never-seen")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

// Applying the same pull twice converges to the same state.
func TestSyncNow_PullIdempotent(t *testing.T) {
	ctx := context.Background()

	pull := emptyPull("2026-03-02T00:00:00.000000Z")
	pull.Changes.Entities.Upserts = []models.Entity{
		{ID: "e-1", Title: "Stable", Rev: 2, ServerUpdatedAt: "2026-03-01T00:00:00.000000Z"},
	}
	pull.Changes.Entities.Deletes = []string{"e-dead"}

	tr := &fakeTransport{pullResp: pull}
	orch, d := newTestOrchestrator(tr)

	_, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	_, err = orch.SyncNow(ctx)
	require.NoError(t, err)

	got, err := d.GetEntity(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "Stable", got.Title)
	assert.Equal(t, int64(2), got.Rev)

	dead, err := d.GetEntity(ctx, "e-dead")
	require.NoError(t, err)
	assert.True(t, dead.Deleted)
}

// Server wins: the conflicting local edit is overwritten with the server
// record and the outbox item is settled.
func TestSyncNow_ConflictServerWins(t *testing.T) {
	ctx := context.Background()

	serverCopy := models.Entity{ID: "e-1", Title: "Server Version", Rev: 7, ServerUpdatedAt: "2026-03-01T00:00:00.000000Z"}
	serverJSON, err := json.Marshal(serverCopy)
	require.NoError(t, err)

	tr := &fakeTransport{
		pushFn: func(req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
			return &syncapi.PushResponse{
				Entities: []syncapi.PushResultItem{
					{ID: "e-1", Status: syncapi.StatusConflict, Server: serverJSON},
				},
			}, nil
		},
	}
	orch, d := newTestOrchestrator(tr)

	local := &models.Entity{ID: "e-1", Title: "Local Version", Rev: 3}
	require.NoError(t, d.PutEntity(ctx, local))
	enqueueEntityUpsert(t, d, local)

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pushed)

	got, err := d.GetEntity(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "Server Version", got.Title)
	assert.Equal(t, int64(7), got.Rev)

	items, err := d.PeekOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// Per-item errors leave the item queued for the next cycle while the rest of
// the batch settles.
func TestSyncNow_ErrorItemStaysQueued(t *testing.T) {
	ctx := context.Background()

	tr := &fakeTransport{
		pushFn: func(req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
			return &syncapi.PushResponse{
				Entities: []syncapi.PushResultItem{
					{ID: "e-ok", Status: syncapi.StatusApplied, Rev: 1, ServerUpdatedAt: "2026-03-01T00:00:00.000000Z"},
					{ID: "e-bad", Status: syncapi.StatusError, Error: "boom"},
				},
			}, nil
		},
	}
	orch, d := newTestOrchestrator(tr)

	for _, id := range []string{"e-ok", "e-bad"} {
		e := &models.Entity{ID: id, Title: id}
		require.NoError(t, d.PutEntity(ctx, e))
		enqueueEntityUpsert(t, d, e)
	}

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pushed)

	items, err := d.PeekOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "e-bad", items[0].TargetID)
}

// A dead transport aborts the cycle before anything local changes.
func TestSyncNow_PullFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()

	tr := &fakeTransport{pullErr: errors.New("connection refused")}
	orch, d := newTestOrchestrator(tr)

	require.NoError(t, d.SetCursor(ctx, "2026-01-01T00:00:00.000000Z"))
	e := &models.Entity{ID: "e-1", Title: "Pending"}
	require.NoError(t, d.PutEntity(ctx, e))
	enqueueEntityUpsert(t, d, e)

	_, err := orch.SyncNow(ctx)
	require.Error(t, err)

	cursor, err := d.GetCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00.000000Z", cursor)

	items, err := d.PeekOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// An applied delete whose record is already gone locally is tolerated.
func TestSyncNow_AppliedDeleteOfMissingLocalRecord(t *testing.T) {
	ctx := context.Background()

	tr := &fakeTransport{
		pushFn: func(req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
			return &syncapi.PushResponse{
				Entities: []syncapi.PushResultItem{
					{ID: "ghost", Status: syncapi.StatusApplied, Rev: 0},
				},
			}, nil
		},
	}
	orch, d := newTestOrchestrator(tr)

	require.NoError(t, d.EnqueueEntity(ctx, &models.OutboxItem{
		Op: models.OpDelete, TargetID: "ghost", ClientRev: 1,
	}))

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pushed)

	// The driver tombstones on delete, so "ghost" may exist as a tombstone;
	// the orchestrator just must not fail on a fully absent record.
	items, err := d.PeekOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// No outbox items means no push call at all.
func TestSyncNow_NothingToPush(t *testing.T) {
	ctx := context.Background()

	tr := &fakeTransport{}
	orch, _ := newTestOrchestrator(tr)

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Pushed)
	assert.Empty(t, tr.pushSeen)
}

// Entity and tag ops are partitioned into their own collections on the wire.
func TestSyncNow_PartitionsKinds(t *testing.T) {
	ctx := context.Background()

	tr := &fakeTransport{
		pushFn: func(req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
			resp := &syncapi.PushResponse{}
			for _, op := range req.Entities {
				resp.Entities = append(resp.Entities, syncapi.PushResultItem{
					ID: op.ID, Status: syncapi.StatusApplied, Rev: op.ClientRev, ServerUpdatedAt: "2026-03-01T00:00:00.000000Z",
				})
			}
			for _, op := range req.Tags {
				resp.Tags = append(resp.Tags, syncapi.PushResultItem{
					ID: op.ID, Status: syncapi.StatusApplied, Rev: op.ClientRev, ServerUpdatedAt: "2026-03-01T00:00:00.000000Z",
				})
			}
			return resp, nil
		},
	}
	orch, d := newTestOrchestrator(tr)

	e := &models.Entity{ID: "e-1", Title: "Note"}
	require.NoError(t, d.PutEntity(ctx, e))
	enqueueEntityUpsert(t, d, e)

	tg := &models.Tag{ID: "t-1", Name: "work"}
	require.NoError(t, d.PutTag(ctx, tg))
	data, err := tg.Snapshot()
	require.NoError(t, err)
	require.NoError(t, d.EnqueueTag(ctx, &models.OutboxItem{
		Op: models.OpUpsert, TargetID: "t-1", ClientRev: 1, Data: data,
	}))

	sum, err := orch.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Pushed)

	require.Len(t, tr.pushSeen, 1)
	assert.Len(t, tr.pushSeen[0].Entities, 1)
	assert.Len(t, tr.pushSeen[0].Tags, 1)

	gotTag, err := d.GetTag(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotTag.Rev)
}
