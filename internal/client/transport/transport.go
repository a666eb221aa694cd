// Package transport implements the stateless RPC client for the sync
// authority. It keeps no local state and never retries; retry policy
// belongs to the sync layer above it.
package transport

import (
	"context"
	"errors"

	"github.com/lskl-cc/souzou/internal/syncapi"
)

var (
	// ErrUnavailable marks network failures, timeouts and server-side
	// outages. A cycle hitting it aborts without touching cursor or outbox.
	ErrUnavailable = errors.New("server unavailable")

	// ErrUnauthorized marks a rejected or missing access token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Transport executes the pull and push RPCs against the remote authority.
// Per-item push failures are encoded in the result items, not returned as
// call-level errors.
type Transport interface {
	// Pull fetches everything that changed after cursor. An empty cursor
	// means "since the beginning of time".
	Pull(ctx context.Context, cursor string) (*syncapi.PullResponse, error)

	// Push submits queued change ops and returns the per-item verdicts.
	Push(ctx context.Context, req *syncapi.PushRequest) (*syncapi.PushResponse, error)

	// Ping probes the authority's liveness endpoint.
	Ping(ctx context.Context) error
}
