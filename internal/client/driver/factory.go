package driver

import (
	"context"
	"fmt"
)

// Backend selects the storage implementation at startup. Business logic
// never branches on it; everything above the Driver interface is
// backend-agnostic.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Open constructs the Driver for the given backend. DSN is only meaningful
// for the SQLite backend.
func Open(ctx context.Context, backend Backend, dsn string) (Driver, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteDriver(ctx, dsn)
	case BackendMemory:
		return NewMemoryDriver(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", backend)
	}
}
