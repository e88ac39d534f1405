package objects_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/storage/memstore"
	"github.com/hedisam/tiersync/storage/objects"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}
}

func TestEnumerator_Objects(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		objects       int
		pageSize      int
		loc           objects.Location
		listErrs      []error
		expectedCount int
		expectedLists int
		errIs         error
	}{
		"follows pagination until exhausted": {
			objects:       25,
			pageSize:      10,
			loc:           objects.ContainerRef{Bucket: "b", Prefix: "data.zarr/", Root: "data.zarr/"},
			expectedCount: 25,
			expectedLists: 3,
		},
		"single page": {
			objects:       3,
			pageSize:      10,
			loc:           objects.ContainerRef{Bucket: "b", Prefix: "data.zarr/", Root: "data.zarr/"},
			expectedCount: 3,
			expectedLists: 1,
		},
		"empty prefix": {
			pageSize:      10,
			loc:           objects.ContainerRef{Bucket: "b", Prefix: "other/", Root: "other/"},
			expectedLists: 1,
		},
		"transient errors are retried": {
			objects:       5,
			pageSize:      2,
			loc:           objects.ContainerRef{Bucket: "b", Prefix: "data.zarr/", Root: "data.zarr/"},
			listErrs:      []error{objects.ErrTransient, objects.ErrTransient},
			expectedCount: 5,
			expectedLists: 5,
		},
		"persistent failure surfaces as a query error": {
			objects:       5,
			pageSize:      2,
			loc:           objects.ContainerRef{Bucket: "b", Prefix: "data.zarr/", Root: "data.zarr/"},
			listErrs:      []error{objects.ErrTransient, objects.ErrTransient, objects.ErrTransient},
			expectedLists: 3,
			errIs:         objects.ErrTransient,
		},
		"access denied is not retried": {
			objects:       5,
			pageSize:      2,
			loc:           objects.ContainerRef{Bucket: "b", Prefix: "data.zarr/", Root: "data.zarr/"},
			listErrs:      []error{objects.ErrAccessDenied},
			expectedLists: 1,
			errIs:         objects.ErrAccessDenied,
		},
		"single object is probed": {
			objects:       3,
			pageSize:      10,
			loc:           objects.SingleObjectRef{Bucket: "b", Key: "data.zarr/c/0"},
			expectedCount: 1,
		},
		"missing single object yields nothing": {
			pageSize: 10,
			loc:      objects.SingleObjectRef{Bucket: "b", Key: "missing.nc"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			store := memstore.New(memstore.WithPageSize(tc.pageSize))
			store.Put("b", "unrelated.txt", 1, "STANDARD")
			for i := range tc.objects {
				store.Put("b", fmt.Sprintf("data.zarr/c/%d", i), 10, "STANDARD")
			}
			store.FailListing(tc.listErrs...)

			e := objects.NewEnumerator(logrus.New(), store, testPolicy())
			records, err := e.Collect(ctx, tc.loc)
			if tc.errIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.errIs)
				var qErr *objects.QueryError
				require.ErrorAs(t, err, &qErr)
				assert.Equal(t, "b", qErr.Bucket)
			} else {
				require.NoError(t, err)
				assert.Len(t, records, tc.expectedCount)
			}
			assert.Equal(t, tc.expectedLists, store.Calls().List)
		})
	}
}

func TestEnumerator_Restartable(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(memstore.WithPageSize(2))
	for i := range 5 {
		store.Put("b", fmt.Sprintf("p/%d", i), 1, "STANDARD")
	}
	e := objects.NewEnumerator(logrus.New(), store, testPolicy())
	seq := e.Objects(ctx, objects.ContainerRef{Bucket: "b", Prefix: "p/", Root: "p/"})

	var first int
	for _, err := range seq {
		require.NoError(t, err)
		first++
		if first == 3 {
			break
		}
	}

	var second int
	for _, err := range seq {
		require.NoError(t, err)
		second++
	}

	assert.Equal(t, 3, first)
	assert.Equal(t, 5, second)
}

func TestEnumerator_Count(t *testing.T) {
	store := memstore.New()
	store.Put("b", "a/1", 1, "STANDARD")
	store.Put("b", "a/2", 1, "STANDARD_IA")
	e := objects.NewEnumerator(logrus.New(), store, testPolicy())

	n, err := e.Count(context.Background(), objects.ContainerRef{Bucket: "b", Prefix: "a/", Root: "a/"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
