package memcatalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/hedisam/tiersync/catalog"
)

const defaultPageSize = 100

// Catalog is an in-memory catalog.Store. Items are copied on the way in and out, so callers never share state with
// the catalog.
type Catalog struct {
	mu       sync.RWMutex
	pageSize int
	items    map[string]map[string]*catalog.Item

	upserts int
	deletes int
}

func New(pageSize int) *Catalog {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Catalog{
		pageSize: pageSize,
		items:    make(map[string]map[string]*catalog.Item),
	}
}

// Stats returns the number of upsert and delete calls that changed the catalog.
func (c *Catalog) Stats() (upserts, deletes int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upserts, c.deletes
}

// Has reports whether the item exists.
func (c *Catalog) Has(collection, id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[collection][id]
	return ok
}

func (c *Catalog) GetItem(_ context.Context, collection, id string) (*catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, catalog.ErrNotFound)
	}

	return item.Clone()
}

func (c *Catalog) UpsertItem(_ context.Context, item *catalog.Item) error {
	if item.ID == "" {
		return errors.New("item id is required")
	}
	if item.Collection == "" {
		return errors.New("item collection is required")
	}

	stored, err := item.Clone()
	if err != nil {
		return fmt.Errorf("could not copy item: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.items[item.Collection]
	if !ok {
		col = make(map[string]*catalog.Item)
		c.items[item.Collection] = col
	}
	col[item.ID] = stored
	c.upserts++

	return nil
}

func (c *Catalog) DeleteItem(_ context.Context, collection, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, catalog.ErrNotFound)
	}
	delete(c.items[collection], id)
	c.deletes++

	return nil
}

// ListItems pages through the collection in id order. The token is the offset of the next page.
func (c *Catalog) ListItems(_ context.Context, collection, token string) (*catalog.ItemPage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	col, ok := c.items[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, catalog.ErrNotFound)
	}

	offset := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page token %q", token)
		}
		offset = n
	}

	ids := slices.Sorted(maps.Keys(col))
	if offset > len(ids) {
		offset = len(ids)
	}
	end := min(offset+c.pageSize, len(ids))

	page := &catalog.ItemPage{}
	for _, id := range ids[offset:end] {
		item, err := col[id].Clone()
		if err != nil {
			return nil, fmt.Errorf("could not copy item %q: %w", id, err)
		}
		page.Items = append(page.Items, item)
	}
	if end < len(ids) {
		page.NextToken = strconv.Itoa(end)
	}

	return page, nil
}
