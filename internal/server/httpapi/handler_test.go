package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/dbx"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/models"
	"github.com/lskl-cc/souzou/internal/server/auth"
	smodels "github.com/lskl-cc/souzou/internal/server/models"
	"github.com/lskl-cc/souzou/internal/server/services"
	"github.com/lskl-cc/souzou/internal/syncapi"
)

type fakeStore struct {
	recs map[string]*smodels.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[string]*smodels.Record{}}
}

func (f *fakeStore) SelectChangedSince(ctx context.Context, userID string, since time.Time) ([]*smodels.Record, error) {
	var out []*smodels.Record
	for _, r := range f.recs {
		if r.UserID == userID && r.ServerUpdatedAt.After(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, userID string, id string) (*smodels.Record, error) {
	r, ok := f.recs[id]
	if !ok || r.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) Insert(ctx context.Context, rec *smodels.Record) error {
	cp := *rec
	f.recs[rec.ID] = &cp
	return nil
}

func (f *fakeStore) Update(ctx context.Context, rec *smodels.Record) error {
	cp := *rec
	f.recs[rec.ID] = &cp
	return nil
}

func newTestServer(t *testing.T, secret []byte) (*httptest.Server, *fakeStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ents := newFakeStore()
	tgs := newFakeStore()
	factory := func(dbx.DBTX) services.Repos {
		return services.Repos{Entities: ents, Tags: tgs}
	}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := services.NewSyncService(db, factory, log)
	h := NewHandler(svc, log)

	ts := httptest.NewServer(h.Routes(secret))
	t.Cleanup(ts.Close)
	return ts, ents, mock
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPull_NoAuthConfigured(t *testing.T) {
	ts, ents, _ := newTestServer(t, nil)

	ents.recs["e-1"] = &smodels.Record{
		ID: "e-1", UserID: "", Payload: []byte(`{"id":"e-1","title":"Hello"}`), Rev: 1,
		ServerUpdatedAt: time.Now(),
	}

	resp, err := http.Get(ts.URL + "/api/sync/pull")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pr syncapi.PullResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pr))
	assert.NotEmpty(t, pr.Cursor)
	require.Len(t, pr.Changes.Entities.Upserts, 1)
	assert.Equal(t, "Hello", pr.Changes.Entities.Upserts[0].Title)
}

func TestPull_RequiresToken(t *testing.T) {
	secret := []byte("test-secret")
	ts, _, _ := newTestServer(t, secret)

	resp, err := http.Get(ts.URL + "/api/sync/pull")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/sync/pull", nil)
	require.NoError(t, err)
	req.Header.Set(common.AuthHeaderName, common.AuthScheme+" garbage")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPull_ScopedToTokenUser(t *testing.T) {
	secret := []byte("test-secret")
	ts, ents, _ := newTestServer(t, secret)

	ents.recs["mine"] = &smodels.Record{
		ID: "mine", UserID: "u-1", Payload: []byte(`{"id":"mine","title":"Mine"}`), Rev: 1,
		ServerUpdatedAt: time.Now(),
	}
	ents.recs["theirs"] = &smodels.Record{
		ID: "theirs", UserID: "u-2", Payload: []byte(`{"id":"theirs","title":"Theirs"}`), Rev: 1,
		ServerUpdatedAt: time.Now(),
	}

	token, err := auth.GenerateToken("u-1", secret, time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/sync/pull", nil)
	require.NoError(t, err)
	req.Header.Set(common.AuthHeaderName, common.AuthScheme+" "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pr syncapi.PullResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pr))
	require.Len(t, pr.Changes.Entities.Upserts, 1)
	assert.Equal(t, "mine", pr.Changes.Entities.Upserts[0].ID)
}

func TestPush_MalformedBody(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/sync/push", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPush_Roundtrip(t *testing.T) {
	ts, ents, mock := newTestServer(t, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	body, err := json.Marshal(syncapi.PushRequest{
		Entities: []models.ChangeOp{
			{Kind: models.KindEntity, Op: models.OpUpsert, ID: "e-1", ClientRev: 1, Data: []byte(`{"id":"e-1","title":"Pushed"}`)},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/sync/push", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pr syncapi.PushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pr))
	require.Len(t, pr.Entities, 1)
	assert.Equal(t, syncapi.StatusApplied, pr.Entities[0].Status)
	assert.Equal(t, int64(1), pr.Entities[0].Rev)

	require.NotNil(t, ents.recs["e-1"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/sync/pull", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
