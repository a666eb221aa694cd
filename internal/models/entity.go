// Package models defines the note-domain records shared by the local store,
// the sync layer and the server: entities, tags, outbox items and change ops.
package models

import "encoding/json"

// EntityType classifies an entity kind.
type EntityType string

const (
	EntityTypeNote     EntityType = "note"
	EntityTypeTemplate EntityType = "template"
	EntityTypeMedia    EntityType = "media"
	EntityTypeView     EntityType = "view"
	EntityTypeWidget   EntityType = "widget"
	EntityTypeKanban   EntityType = "kanban"
	EntityTypeCalendar EntityType = "calendar"
	EntityTypeCanvas   EntityType = "canvas"
)

// ValidEntityType reports whether t is one of the known entity kinds.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeNote, EntityTypeTemplate, EntityTypeMedia, EntityTypeView,
		EntityTypeWidget, EntityTypeKanban, EntityTypeCalendar, EntityTypeCanvas:
		return true
	}
	return false
}

// Entity is a note-like record persisted locally and synced with the server.
// Media entities keep their payload serialized inside Content.
type Entity struct {
	// ID is a globally unique, client-generated identifier.
	ID string `json:"id"`

	// Type is the entity kind; defaults to note.
	Type EntityType `json:"type"`

	Title   string `json:"title"`
	Content string `json:"content"`

	// Parent references another entity's id; nil for roots.
	Parent *string `json:"parent"`

	// Metadata holds user-defined custom properties.
	Metadata map[string]any `json:"metadata"`

	// Tags is the set of tag ids attached to this entity.
	Tags []string `json:"tags"`

	// CreatedAt is immutable, set at creation (RFC3339 UTC).
	CreatedAt string `json:"created_at"`

	// UpdatedAt changes on every local write; never empty when read back.
	UpdatedAt string `json:"updated_at"`

	// Rev is the monotonic, server-assigned revision; 0 before first sync.
	Rev int64 `json:"rev"`

	// ServerUpdatedAt is the authority's timestamp of the last accepted write.
	ServerUpdatedAt string `json:"server_updated_at"`

	// Deleted marks the record as a tombstone (kept to propagate deletion).
	Deleted bool `json:"deleted"`

	// DeletedAt is the tombstone timestamp, empty unless Deleted.
	DeletedAt string `json:"deleted_at,omitempty"`
}

// Normalize fills the containers and timestamps a caller must never see
// empty: metadata/tags become empty collections and UpdatedAt is backfilled
// from ServerUpdatedAt or the wall clock.
func (e *Entity) Normalize() {
	if e.Type == "" {
		e.Type = EntityTypeNote
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.UpdatedAt == "" {
		if e.ServerUpdatedAt != "" {
			e.UpdatedAt = e.ServerUpdatedAt
		} else {
			e.UpdatedAt = Now()
		}
	}
}

// Snapshot returns the record serialized for an outbox upsert op.
func (e *Entity) Snapshot() (json.RawMessage, error) {
	return json.Marshal(e)
}
