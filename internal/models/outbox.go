package models

import "encoding/json"

// Op is the mutation kind queued in the outbox and sent on the wire.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Kind tells entity changes from tag changes. It is an explicit
// discriminant carried on every queued change, so nothing ever has to
// guess from payload shape.
type Kind string

const (
	KindEntity Kind = "entity"
	KindTag    Kind = "tag"
)

// OutboxItem is a queued local mutation awaiting transmission. At most one
// item exists per TargetID: a later local edit overwrites Op/ClientRev/Data
// in place instead of appending.
type OutboxItem struct {
	// Seq is the internal insertion-order key; it survives coalescing, so
	// FIFO position is that of the first edit.
	Seq int64 `json:"-"`

	Kind     Kind   `json:"kind"`
	Op       Op     `json:"op"`
	TargetID string `json:"id"`

	// ClientRev is the advisory local mutation counter; the server remains
	// the arbiter of the final rev.
	ClientRev int64 `json:"client_rev"`

	// Data is the full record snapshot for upserts; nil for deletes.
	Data json.RawMessage `json:"data,omitempty"`
}

// ChangeOp is the wire form of a queued mutation, as accepted by the push
// endpoint.
type ChangeOp struct {
	Kind      Kind            `json:"kind"`
	Op        Op              `json:"op"`
	ID        string          `json:"id"`
	ClientRev int64           `json:"client_rev"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ChangeOp converts the queued item to its wire form.
func (i *OutboxItem) ChangeOp() ChangeOp {
	return ChangeOp{Kind: i.Kind, Op: i.Op, ID: i.TargetID, ClientRev: i.ClientRev, Data: i.Data}
}
