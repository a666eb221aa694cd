// Package syncmeta stores small key/value sync state, currently the cursor.
package syncmeta

import "context"

// Repository is a key/value store for sync bookkeeping.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Clear(ctx context.Context) error
}

// CursorKey is the key under which the pull watermark is persisted.
const CursorKey = "cursor"
