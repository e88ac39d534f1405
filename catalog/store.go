package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("catalog item not found")
	ErrAccessDenied = errors.New("catalog access denied")
	ErrTransient    = errors.New("transient catalog error")
)

// ItemPage is one page of a collection listing. NextToken is empty on the last page.
type ItemPage struct {
	Items     []*Item
	NextToken string
}

// Store is the subset of the catalog API the engine consumes.
type Store interface {
	GetItem(ctx context.Context, collection, id string) (*Item, error)
	// UpsertItem creates the item or replaces it as a whole.
	UpsertItem(ctx context.Context, item *Item) error
	// DeleteItem returns ErrNotFound when the item does not exist.
	DeleteItem(ctx context.Context, collection, id string) error
	ListItems(ctx context.Context, collection, token string) (*ItemPage, error)
}

// IsRetryable reports whether a catalog call that failed with err may be retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		return false
	default:
		return true
	}
}
