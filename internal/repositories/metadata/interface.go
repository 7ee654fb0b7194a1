// Package metadata stores small key/value pairs describing synchronization
// state: the last successful sync time, the skipped-row count of the last run,
// and the journal of permanent deletions whose local row removal is pending.
package metadata

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
