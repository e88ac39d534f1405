package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tiersync/catalog"
)

const itemJSON = `{
  "type": "Feature",
  "stac_version": "1.0.0",
  "id": "S2A_MSIL2A_20250101",
  "collection": "sentinel-2-l2a",
  "geometry": {"type": "Point", "coordinates": [1.5, 2.5]},
  "bbox": [1, 2, 3, 4],
  "links": [{"rel": "self", "href": "https://catalog/items/S2A_MSIL2A_20250101"}],
  "stac_extensions": ["https://stac-extensions.github.io/projection/v1.1.0/schema.json"],
  "properties": {"datetime": "2025-01-01T00:00:00Z", "eo:cloud_cover": 12.25},
  "assets": {
    "reflectance": {
      "href": "https://gateway.example/bucket/s2/item.zarr/measurements/reflectance",
      "type": "application/vnd+zarr",
      "roles": ["data"],
      "alternate": {
        "s3": {
          "href": "s3://bucket/s2/item.zarr/measurements/reflectance",
          "storage:refs": ["standard"],
          "storage:scheme": {"platform": "legacy"},
          "objects_per_storage_class": {"STANDARD": 1000},
          "title": "S3"
        },
        "xarray": {"href": "s3://bucket/s2/item.zarr", "engine": "zarr"}
      }
    },
    "thumbnail": {"href": "https://gateway.example/bucket/thumb.png", "roles": ["thumbnail"]}
  }
}`

func TestItem_RoundTripPreservesUnmodeledFields(t *testing.T) {
	var item catalog.Item
	require.NoError(t, json.Unmarshal([]byte(itemJSON), &item))

	assert.Equal(t, "S2A_MSIL2A_20250101", item.ID)
	assert.Equal(t, "sentinel-2-l2a", item.Collection)
	require.Contains(t, item.Assets, "reflectance")

	alt, ok := item.Assets["reflectance"].S3Alternate()
	require.True(t, ok)
	assert.Equal(t, []string{"standard"}, alt.Refs)
	assert.Equal(t, map[string]int{"STANDARD": 1000}, alt.Distribution)
	assert.True(t, alt.HasLegacyScheme())

	out, err := json.Marshal(&item)
	require.NoError(t, err)
	assert.JSONEq(t, itemJSON, string(out))
}

func TestItem_ModifyAlternate(t *testing.T) {
	var item catalog.Item
	require.NoError(t, json.Unmarshal([]byte(itemJSON), &item))

	asset := item.Assets["reflectance"]
	alt, ok := asset.S3Alternate()
	require.True(t, ok)
	alt.Refs = []string{"mixed"}
	alt.Distribution = map[string]int{"STANDARD": 700, "STANDARD_IA": 300}
	assert.True(t, alt.DropLegacyScheme())
	require.NoError(t, asset.SetS3Alternate(alt))
	assert.True(t, item.AddExtension(catalog.StorageExtension))
	assert.False(t, item.AddExtension(catalog.StorageExtension))

	out, err := json.Marshal(&item)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assets := generic["assets"].(map[string]any)
	reflectance := assets["reflectance"].(map[string]any)
	alternate := reflectance["alternate"].(map[string]any)
	s3 := alternate["s3"].(map[string]any)

	assert.Equal(t, []any{"mixed"}, s3["storage:refs"])
	assert.Equal(t, map[string]any{"STANDARD": 700.0, "STANDARD_IA": 300.0}, s3["objects_per_storage_class"])
	assert.NotContains(t, s3, "storage:scheme")
	assert.Equal(t, "S3", s3["title"])
	assert.Contains(t, alternate, "xarray")
	assert.Equal(t, "application/vnd+zarr", reflectance["type"])
	assert.Contains(t, generic, "geometry")
	assert.Len(t, generic["stac_extensions"], 2)
}

func TestS3Alternate_ClearDistribution(t *testing.T) {
	tests := map[string]struct {
		raw      string
		expected bool
	}{
		"present":   {raw: `{"href":"s3://b/k.nc","objects_per_storage_class":{"STANDARD":1}}`, expected: true},
		"malformed": {raw: `{"href":"s3://b/k.nc","objects_per_storage_class":"lots"}`, expected: true},
		"absent":    {raw: `{"href":"s3://b/k.nc"}`, expected: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var alt catalog.S3Alternate
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &alt))
			assert.Equal(t, tc.expected, alt.ClearDistribution())

			out, err := json.Marshal(alt)
			require.NoError(t, err)
			assert.JSONEq(t, `{"href":"s3://b/k.nc"}`, string(out))
		})
	}
}

func TestItem_Properties(t *testing.T) {
	item := &catalog.Item{ID: "a"}
	var schemes map[string]json.RawMessage
	found, err := item.Property(catalog.StorageSchemesProperty, &schemes)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, item.SetProperty(catalog.StorageSchemesProperty, map[string]any{"standard": map[string]string{"type": "custom-s3"}}))
	found, err = item.Property(catalog.StorageSchemesProperty, &schemes)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, schemes, "standard")
}
