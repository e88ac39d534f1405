package catalog_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/storage/objects"
)

func TestHrefResolver_S3URL(t *testing.T) {
	resolver, err := catalog.NewHrefResolver("https://s3.explorer.example.eu")
	require.NoError(t, err)

	tests := map[string]struct {
		href     string
		expected string
		ok       bool
	}{
		"s3 url":              {href: "s3://bucket/a.zarr", expected: "s3://bucket/a.zarr", ok: true},
		"gateway url":         {href: "https://s3.explorer.example.eu/bucket/path/a.zarr", expected: "s3://bucket/path/a.zarr", ok: true},
		"gateway bucket only": {href: "https://s3.explorer.example.eu/bucket", ok: false},
		"virtual hosted":      {href: "https://bucket.s3.de.io.cloud.ovh.net/path/a.zarr", expected: "s3://bucket/path/a.zarr", ok: true},
		"unrelated https":     {href: "https://example.com/a.zarr", ok: false},
		"http is not mapped":  {href: "http://bucket.s3.example.com/a.zarr", ok: false},
		"relative":            {href: "./a.zarr", ok: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := resolver.S3URL(tc.href)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	tests := map[string]struct {
		assets          string
		expectedRefs    []catalog.AssetRef
		expectedSkipped []string
	}{
		"alternate is preferred over href": {
			assets: `{"data": {
				"href": "https://bucket.s3.example.net/other.zarr",
				"alternate": {"s3": {"href": "s3://bucket/c/item.zarr", "storage:refs": ["glacier"]}}
			}}`,
			expectedRefs: []catalog.AssetRef{{
				Name:     "data",
				Location: objects.ContainerRef{Bucket: "bucket", Prefix: "c/item.zarr/", Root: "c/item.zarr/"},
				Source:   catalog.SourceAlternate,
				Recorded: &catalog.Recorded{Refs: []string{"glacier"}},
			}},
		},
		"falls back to s3 href": {
			assets: `{"product": {"href": "s3://bucket/c/product.zip", "roles": ["data"]}}`,
			expectedRefs: []catalog.AssetRef{{
				Name:     "product",
				Location: objects.SingleObjectRef{Bucket: "bucket", Key: "c/product.zip"},
				Source:   catalog.SourcePrimary,
			}},
		},
		"falls back to https href when the alternate is not s3": {
			assets: `{"data": {
				"href": "https://gw.example/bucket/c/item.zarr/measurements",
				"alternate": {"s3": {"href": "https://elsewhere/x"}}
			}}`,
			expectedRefs: []catalog.AssetRef{{
				Name:     "data",
				Location: objects.ContainerRef{Bucket: "bucket", Prefix: "c/item.zarr/measurements/", Root: "c/item.zarr/"},
				Source:   catalog.SourcePrimary,
				Recorded: &catalog.Recorded{},
			}},
		},
		"thumbnails are ignored": {
			assets: `{"thumbnail": {"href": "s3://bucket/t.png", "roles": ["thumbnail", "overview"]}}`,
		},
		"assets without storage are skipped": {
			assets:          `{"metadata": {"href": "https://example.com/meta.xml"}, "null": null}`,
			expectedSkipped: []string{"metadata"},
		},
	}

	resolver, err := catalog.NewHrefResolver("https://gw.example")
	require.NoError(t, err)
	extractor := catalog.NewExtractor(logrus.New(), resolver)

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var item catalog.Item
			require.NoError(t, json.Unmarshal([]byte(`{"id":"i","assets":`+tc.assets+`}`), &item))

			got := extractor.Extract(context.Background(), &item)
			assert.Equal(t, tc.expectedRefs, got.Refs)
			assert.Equal(t, tc.expectedSkipped, got.Skipped)
		})
	}
}

func TestExtraction_Locations(t *testing.T) {
	tests := map[string]struct {
		refs     []catalog.AssetRef
		expected []objects.Location
	}{
		"groups of one store share its root": {
			refs: []catalog.AssetRef{
				{Name: "b02", Location: objects.ContainerRef{Bucket: "b", Prefix: "x.zarr/b02/", Root: "x.zarr/"}},
				{Name: "b03", Location: objects.ContainerRef{Bucket: "b", Prefix: "x.zarr/b03/", Root: "x.zarr/"}},
				{Name: "zip", Location: objects.SingleObjectRef{Bucket: "b", Key: "x.zip"}},
			},
			expected: []objects.Location{
				objects.ContainerRef{Bucket: "b", Prefix: "x.zarr/", Root: "x.zarr/"},
				objects.SingleObjectRef{Bucket: "b", Key: "x.zip"},
			},
		},
		"locations inside a container are covered by it": {
			refs: []catalog.AssetRef{
				{Name: "store", Location: objects.ContainerRef{Bucket: "b", Prefix: "col/a/p.zarr/m/", Root: "col/a/p.zarr/"}},
				{Name: "folder", Location: objects.ContainerRef{Bucket: "b", Prefix: "col/a/", Root: "col/a/"}},
				{Name: "tif", Location: objects.SingleObjectRef{Bucket: "b", Key: "col/a/x.tif"}},
				{Name: "sibling", Location: objects.SingleObjectRef{Bucket: "b", Key: "col/ab.tif"}},
				{Name: "other bucket", Location: objects.SingleObjectRef{Bucket: "c", Key: "col/a/x.tif"}},
			},
			expected: []objects.Location{
				objects.ContainerRef{Bucket: "b", Prefix: "col/a/", Root: "col/a/"},
				objects.SingleObjectRef{Bucket: "b", Key: "col/ab.tif"},
				objects.SingleObjectRef{Bucket: "c", Key: "col/a/x.tif"},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ex := &catalog.Extraction{Refs: tc.refs}
			assert.Equal(t, tc.expected, ex.Locations())
		})
	}
}
