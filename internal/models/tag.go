package models

import "encoding/json"

// Tag is a label with optional hierarchy, carrying the same sync fields
// as Entity.
type Tag struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Description string  `json:"description,omitempty"`
	Parent      *string `json:"parent"`

	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	Rev             int64  `json:"rev"`
	ServerUpdatedAt string `json:"server_updated_at"`
	Deleted         bool   `json:"deleted"`
	DeletedAt       string `json:"deleted_at,omitempty"`
}

// Normalize backfills UpdatedAt the same way Entity.Normalize does.
func (t *Tag) Normalize() {
	if t.UpdatedAt == "" {
		if t.ServerUpdatedAt != "" {
			t.UpdatedAt = t.ServerUpdatedAt
		} else {
			t.UpdatedAt = Now()
		}
	}
}

// Snapshot returns the record serialized for an outbox upsert op.
func (t *Tag) Snapshot() (json.RawMessage, error) {
	return json.Marshal(t)
}
