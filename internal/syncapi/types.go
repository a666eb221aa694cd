// Package syncapi defines the wire envelopes of the pull/push contract
// between the client and the remote authority.
package syncapi

import (
	"encoding/json"

	"github.com/lskl-cc/souzou/internal/models"
)

// RecordChanges groups the changed records of one collection since a cursor.
type RecordChanges[T any] struct {
	Upserts []T      `json:"upserts"`
	Deletes []string `json:"deletes"`
}

// Changes carries everything that changed on the server since a cursor.
type Changes struct {
	Entities RecordChanges[models.Entity] `json:"entities"`
	Tags     RecordChanges[models.Tag]    `json:"tags"`
}

// PullResponse is the body of GET /api/sync/pull.
type PullResponse struct {
	// Cursor is the new watermark to persist once the changes are applied.
	Cursor  string  `json:"cursor"`
	Changes Changes `json:"changes"`
}

// PushRequest is the body of POST /api/sync/push.
type PushRequest struct {
	Entities []models.ChangeOp `json:"entities"`
	Tags     []models.ChangeOp `json:"tags"`
}

// Push item statuses. Conflicts and per-item errors are normal outcomes,
// not call-level failures.
const (
	StatusApplied  = "applied"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// PushResultItem reports the authority's verdict on a single change op.
type PushResultItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// Set when Status is applied.
	Rev             int64  `json:"rev,omitempty"`
	ServerUpdatedAt string `json:"server_updated_at,omitempty"`

	// Set when Status is conflict: the authority's stored record, which
	// wins unconditionally.
	Server json.RawMessage `json:"server,omitempty"`

	// Set when Status is error.
	Error string `json:"error,omitempty"`
}

// PushResponse is the body returned by POST /api/sync/push.
type PushResponse struct {
	Entities []PushResultItem `json:"entities"`
	Tags     []PushResultItem `json:"tags"`
}
