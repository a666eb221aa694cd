// Package models defines the server-side row types. The server stores each
// synced record as an opaque payload plus the sync metadata it is the
// authority for: revision, server timestamp and tombstone state.
package models

import "time"

// Record is one row of the entities or tags table. Payload is the client's
// snapshot JSON; Rev, ServerUpdatedAt and Deleted are owned by the server and
// override whatever the payload claims.
type Record struct {
	ID     string
	UserID string

	Payload []byte

	Rev             int64
	ServerUpdatedAt time.Time
	Deleted         bool
	DeletedAt       *time.Time
}
