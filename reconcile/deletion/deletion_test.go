package deletion_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/catalog/memcatalog"
	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/reconcile/deletion"
	"github.com/hedisam/tiersync/reconcile/deletion/mocks"
	"github.com/hedisam/tiersync/storage/memstore"
	"github.com/hedisam/tiersync/storage/objects"
)

const bucket = "bucket"

var (
	fullRun = []deletion.State{
		deletion.StateStart,
		deletion.StateEnumerating,
		deletion.StateDeleting,
		deletion.StateVerifying,
		deletion.StateMetadataDelete,
	}
	preservedRun = []deletion.State{
		deletion.StateStart,
		deletion.StateEnumerating,
		deletion.StateDeleting,
		deletion.StateVerifying,
		deletion.StatePreserved,
	}
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}
}

type fixture struct {
	store   *memstore.Store
	catalog *memcatalog.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		store:   memstore.New(memstore.WithPageSize(100)),
		catalog: memcatalog.New(0),
	}
}

func (f *fixture) coordinator(store deletion.ObjectStore, cat deletion.Catalog) *deletion.Coordinator {
	logger := logrus.New()
	if store == nil {
		store = f.store
	}
	if cat == nil {
		cat = f.catalog
	}
	return deletion.NewCoordinator(
		logger,
		catalog.NewExtractor(logger, nil),
		objects.NewEnumerator(logger, f.store, fastPolicy()),
		store,
		cat,
		fastPolicy(),
	)
}

// addItem stores an item with one zarr asset per entry of counts, each backed by that many objects.
func (f *fixture) addItem(t *testing.T, id string, counts ...int) *catalog.Item {
	t.Helper()
	item := &catalog.Item{
		ID:         id,
		Collection: "col",
		Assets:     make(map[string]*catalog.Asset),
	}
	for i, n := range counts {
		prefix := fmt.Sprintf("col/%s/asset-%d.zarr", id, i)
		for j := range n {
			f.store.Put(bucket, fmt.Sprintf("%s/%d", prefix, j), 10, "STANDARD")
		}
		item.Assets[fmt.Sprintf("asset-%d", i)] = &catalog.Asset{Href: "s3://" + bucket + "/" + prefix}
	}
	item.Assets["thumbnail"] = &catalog.Asset{Href: "s3://" + bucket + "/thumb.png", Roles: []string{"thumbnail"}}
	require.NoError(t, f.catalog.UpsertItem(context.Background(), item))
	return item
}

func TestClean_WithData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.addItem(t, "a", 250, 200)
	f.store.Put(bucket, "thumb.png", 1, "STANDARD")

	out, err := f.coordinator(nil, nil).Clean(ctx, item, deletion.Options{WithData: true})
	require.NoError(t, err)
	assert.Equal(t, fullRun, out.Transitions)
	assert.True(t, out.ItemDeleted)
	assert.Equal(t, 450, out.Objects)
	assert.Equal(t, 450, out.Deleted)
	assert.Equal(t, int64(4500), out.Bytes)
	assert.Equal(t, 2, out.Assets())
	assert.Zero(t, out.Residual)
	assert.False(t, f.catalog.Has("col", "a"))
	// 250 keys take two batches, 200 keys take one
	assert.Equal(t, 3, f.store.Calls().DeleteObjects)
	// thumbnails are not part of the item data
	assert.Contains(t, f.store.Snapshot(bucket), "thumb.png")
}

func TestClean_DeleteFailurePreservesItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.addItem(t, "a", 3)
	f.store.FailDelete(bucket, "col/a/asset-0.zarr/1", "AccessDenied")

	out, err := f.coordinator(nil, nil).Clean(ctx, item, deletion.Options{WithData: true})
	require.NoError(t, err)
	assert.Equal(t, preservedRun, out.Transitions)
	assert.True(t, out.Preserved())
	assert.False(t, out.ItemDeleted)
	assert.Equal(t, 1, out.Residual)
	assert.Equal(t, 1, out.DeleteFailed)
	assert.Equal(t, 2, out.Deleted)
	assert.ErrorIs(t, out.Err, deletion.ErrResidualObjects)
	assert.Equal(t, "preserved with 1 residual objects", out.String())
	assert.True(t, f.catalog.Has("col", "a"))
}

func TestClean_RetainedObjectPreservesItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.addItem(t, "a", 4)
	f.store.RetainOnDelete(bucket, "col/a/asset-0.zarr/2")

	out, err := f.coordinator(nil, nil).Clean(ctx, item, deletion.Options{WithData: true})
	require.NoError(t, err)
	assert.True(t, out.Preserved())
	assert.Equal(t, 4, out.Deleted)
	assert.Equal(t, 1, out.Residual)
	assert.Equal(t, 1, out.Locations[0].Residual)
	assert.True(t, f.catalog.Has("col", "a"))
}

func TestClean_DryRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.addItem(t, "a", 300, 200)

	out, err := f.coordinator(nil, nil).Clean(ctx, item, deletion.Options{WithData: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []deletion.State{deletion.StateStart, deletion.StateEnumerating}, out.Transitions)
	assert.Equal(t, "would delete 500 objects across 2 assets", out.String())
	assert.Len(t, out.SampleKeys, deletion.DefaultSampleKeys)
	assert.Equal(t, "s3://bucket/col/a/asset-0.zarr/0", out.SampleKeys[0])
	assert.Zero(t, f.store.Calls().DeleteObjects)
	_, deletes := f.catalog.Stats()
	assert.Zero(t, deletes)
	assert.True(t, f.catalog.Has("col", "a"))
}

func TestClean_WithoutData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.addItem(t, "a", 3)

	out, err := f.coordinator(nil, nil).Clean(ctx, item, deletion.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []deletion.State{deletion.StateStart}, out.Transitions)
	assert.Equal(t, "would delete the catalog item", out.String())
	assert.True(t, f.catalog.Has("col", "a"))

	out, err = f.coordinator(nil, nil).Clean(ctx, item, deletion.Options{})
	require.NoError(t, err)
	assert.Equal(t, []deletion.State{deletion.StateStart, deletion.StateMetadataDelete}, out.Transitions)
	assert.True(t, out.ItemDeleted)
	assert.False(t, f.catalog.Has("col", "a"))
	assert.Zero(t, f.store.Calls().List)
	assert.Len(t, f.store.Snapshot(bucket), 3)
}

func TestClean_CatalogDelete(t *testing.T) {
	tests := map[string]struct {
		deleteErr           error
		expectedItemDeleted bool
		expectedErr         error
		expectedCalls       int
	}{
		"missing item is fine": {
			deleteErr:           catalog.ErrNotFound,
			expectedItemDeleted: true,
			expectedCalls:       1,
		},
		"transient failures are retried": {
			deleteErr:     catalog.ErrTransient,
			expectedErr:   catalog.ErrTransient,
			expectedCalls: 3,
		},
		"access denied": {
			deleteErr:     catalog.ErrAccessDenied,
			expectedErr:   catalog.ErrAccessDenied,
			expectedCalls: 1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			item := f.addItem(t, "a", 2)
			cat := &mocks.CatalogMock{
				DeleteItemFunc: func(ctx context.Context, collection string, id string) error {
					return tc.deleteErr
				},
			}

			out, err := f.coordinator(nil, cat).Clean(context.Background(), item, deletion.Options{WithData: true})
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, fullRun, out.Transitions)
			assert.Equal(t, tc.expectedItemDeleted, out.ItemDeleted)
			assert.Len(t, cat.DeleteItemCalls(), tc.expectedCalls)
			// the data is gone either way
			assert.Empty(t, f.store.Snapshot(bucket))
		})
	}
}

func TestClean_EnumerationFailurePreservesWithoutDeleting(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, "a", 2)
	f.store.FailListing(objects.ErrAccessDenied)

	out, err := f.coordinator(nil, nil).Clean(context.Background(), item, deletion.Options{WithData: true})
	require.NoError(t, err)
	assert.Equal(t, []deletion.State{deletion.StateStart, deletion.StateEnumerating, deletion.StatePreserved}, out.Transitions)
	assert.ErrorIs(t, out.Err, objects.ErrAccessDenied)
	assert.Zero(t, f.store.Calls().DeleteObjects)
	assert.True(t, f.catalog.Has("col", "a"))
}

func TestClean_VerificationFailurePreserves(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, "a", 2)
	store := &mocks.ObjectStoreMock{
		DeleteObjectsFunc: func(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error) {
			failures, err := f.store.DeleteObjects(ctx, bucket, keys)
			// the listing used for verification fails
			f.store.FailListing(objects.ErrAccessDenied)
			return failures, err
		},
	}

	out, err := f.coordinator(store, nil).Clean(context.Background(), item, deletion.Options{WithData: true})
	require.NoError(t, err)
	assert.Equal(t, preservedRun, out.Transitions)
	assert.Equal(t, 2, out.Deleted)
	assert.Zero(t, out.Residual)
	assert.ErrorIs(t, out.Err, objects.ErrAccessDenied)
	assert.True(t, f.catalog.Has("col", "a"))
}

func TestClean_DeleteCallErrors(t *testing.T) {
	tests := map[string]struct {
		deleteObjects        func(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error)
		expectedPreserved    bool
		expectedDeleted      int
		expectedDeleteFailed int
		expectedCalls        int
	}{
		"missing keys count as deleted": {
			deleteObjects: func(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error) {
				return []objects.DeleteFailure{{Key: keys[0], Code: "NoSuchKey"}}, nil
			},
			expectedDeleted: 2,
			expectedCalls:   1,
		},
		"failed call counts the whole batch": {
			deleteObjects: func(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error) {
				return nil, errors.Join(objects.ErrTransient, errors.New("slow down"))
			},
			expectedPreserved:    true,
			expectedDeleteFailed: 2,
			expectedCalls:        3,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			item := f.addItem(t, "a", 2)
			store := &mocks.ObjectStoreMock{
				DeleteObjectsFunc: func(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error) {
					failures, err := tc.deleteObjects(ctx, bucket, keys)
					if err == nil {
						// the mock reports, the in-memory store deletes
						_, _ = f.store.DeleteObjects(ctx, bucket, keys)
					}
					return failures, err
				},
			}

			out, err := f.coordinator(store, nil).Clean(context.Background(), item, deletion.Options{WithData: true})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedPreserved, out.Preserved())
			assert.Equal(t, tc.expectedDeleted, out.Deleted)
			assert.Equal(t, tc.expectedDeleteFailed, out.DeleteFailed)
			assert.Len(t, store.DeleteObjectsCalls(), tc.expectedCalls)
			assert.Equal(t, !tc.expectedPreserved, out.ItemDeleted)
		})
	}
}

func TestClean_FailureIsContainedToTheItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	items := []*catalog.Item{
		f.addItem(t, "a", 3),
		f.addItem(t, "b", 3),
		f.addItem(t, "c", 3),
	}
	f.store.FailDelete(bucket, "col/b/asset-0.zarr/0", "InternalError")
	c := f.coordinator(nil, nil)

	for _, item := range items {
		_, err := c.Clean(ctx, item, deletion.Options{WithData: true})
		require.NoError(t, err)
	}

	assert.False(t, f.catalog.Has("col", "a"))
	assert.True(t, f.catalog.Has("col", "b"))
	assert.False(t, f.catalog.Has("col", "c"))
	assert.Equal(t, map[string]string{"col/b/asset-0.zarr/0": "STANDARD"}, f.store.Snapshot(bucket))
}

func TestClean_DryRunCountsAssetsSharingAStore(t *testing.T) {
	tests := map[string]struct {
		hrefs             map[string]string
		expectedString    string
		expectedLocations int
	}{
		"two groups of one zarr store": {
			hrefs: map[string]string{
				"measurements": "s3://bucket/col/a/p.zarr/measurements",
				"quality":      "s3://bucket/col/a/p.zarr/quality",
			},
			expectedString:    "would delete 500 objects across 2 assets",
			expectedLocations: 1,
		},
		"store nested in a plain container": {
			hrefs: map[string]string{
				"folder":       "s3://bucket/col/a",
				"measurements": "s3://bucket/col/a/p.zarr/measurements",
			},
			expectedString:    "would delete 500 objects across 2 assets",
			expectedLocations: 1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			for _, group := range []string{"measurements", "quality"} {
				for i := range 250 {
					f.store.Put(bucket, fmt.Sprintf("col/a/p.zarr/%s/%d", group, i), 10, "STANDARD")
				}
			}
			item := &catalog.Item{ID: "a", Collection: "col", Assets: make(map[string]*catalog.Asset)}
			for asset, href := range tc.hrefs {
				item.Assets[asset] = &catalog.Asset{Href: href}
			}
			require.NoError(t, f.catalog.UpsertItem(context.Background(), item))

			out, err := f.coordinator(nil, nil).Clean(context.Background(), item, deletion.Options{WithData: true, DryRun: true})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedString, out.String())
			assert.Equal(t, 500, out.Objects)
			assert.Len(t, out.Locations, tc.expectedLocations)
		})
	}
}

func TestClean_CatalogPolicy(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, "a", 2)
	cat := &mocks.CatalogMock{
		DeleteItemFunc: func(ctx context.Context, collection string, id string) error {
			return catalog.ErrTransient
		},
	}
	logger := logrus.New()
	c := deletion.NewCoordinator(
		logger,
		catalog.NewExtractor(logger, nil),
		objects.NewEnumerator(logger, f.store, fastPolicy()),
		f.store,
		cat,
		fastPolicy(),
		deletion.WithCatalogPolicy(retry.Policy{MaxAttempts: 1}),
	)

	out, err := c.Clean(context.Background(), item, deletion.Options{WithData: true})
	assert.ErrorIs(t, err, catalog.ErrTransient)
	assert.False(t, out.ItemDeleted)
	assert.Len(t, cat.DeleteItemCalls(), 1)
	assert.Empty(t, f.store.Snapshot(bucket))
}
