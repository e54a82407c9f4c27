package objectstore

import "context"

// Store is the object-storage collaborator: opaque paths in, bytes out.
// Ingestion calls Get exactly once per trigger.
type Store interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
}
