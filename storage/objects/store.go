package objects

import (
	"context"
)

// Record is a single object as reported by the provider. Records are never persisted.
type Record struct {
	Bucket       string
	Key          string
	Size         int64
	StorageClass string
}

// Page is one page of a prefix listing. NextToken is empty on the last page.
type Page struct {
	Records   []Record
	NextToken string
}

// DeleteFailure describes a key the provider refused to delete.
type DeleteFailure struct {
	Key     string
	Code    string
	Message string
}

// Store is the subset of the object storage API the engine consumes.
type Store interface {
	// List returns one page of objects under prefix, starting at token ("" for the first page).
	List(ctx context.Context, bucket, prefix, token string) (*Page, error)
	// Head probes a single object. It returns ErrNotFound when the object does not exist.
	Head(ctx context.Context, bucket, key string) (*Record, error)
	// DeleteObjects deletes a batch of keys and reports the keys that could not be deleted.
	DeleteObjects(ctx context.Context, bucket string, keys []string) ([]DeleteFailure, error)
	// SetStorageClass rewrites the object in place with a new provider storage class.
	SetStorageClass(ctx context.Context, bucket, key, storageClass string) error
}
